// Package filetree 将 GitHub tree API 返回的扁平 (path, type, size) 列表重建为
// 目录/文件森林。父节点必须出现在输入中，否则子节点被丢弃。
package filetree

import (
	"sort"
	"strings"

	"github.com/repolens/repolens/internal/model"
)

// Build 按路径深度排序后逐条挂载节点，保证父节点先于子节点物化。
// 父路径缺失（或父节点是文件）的条目会被静默丢弃。
func Build(entries []model.TreeEntry) []*model.FileNode {
	sorted := make([]model.TreeEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return depth(sorted[i].Path) < depth(sorted[j].Path)
	})

	index := make(map[string]*model.FileNode, len(sorted))
	roots := make([]*model.FileNode, 0)

	for _, entry := range sorted {
		p := strings.Trim(entry.Path, "/")
		if p == "" {
			continue
		}
		segments := strings.Split(p, "/")
		name := segments[len(segments)-1]

		node := &model.FileNode{
			Path:      p,
			Name:      name,
			Type:      normalizeType(entry.Type),
			Size:      entry.Size,
			Extension: extension(name),
		}
		index[p] = node

		if len(segments) == 1 {
			roots = append(roots, node)
			continue
		}

		parentPath := strings.Join(segments[:len(segments)-1], "/")
		parent, ok := index[parentPath]
		if !ok || !parent.IsDir() {
			continue
		}
		parent.Children = append(parent.Children, node)
	}

	return roots
}

func depth(p string) int {
	return strings.Count(strings.Trim(p, "/"), "/")
}

func normalizeType(t model.NodeType) model.NodeType {
	if t == model.NodeDirectory {
		return model.NodeDirectory
	}
	return model.NodeFile
}

// extension 返回名称中最后一个 "." 之后的部分，没有时返回空串。
func extension(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx < 0 || idx == len(name)-1 {
		return ""
	}
	return name[idx+1:]
}
