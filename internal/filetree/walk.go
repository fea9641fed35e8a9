package filetree

import "github.com/repolens/repolens/internal/model"

// Walk 以深度优先、前序的方式访问节点；fn 返回 false 时不再进入该节点的子树。
func Walk(nodes []*model.FileNode, fn func(*model.FileNode) bool) {
	for _, node := range nodes {
		if node == nil {
			continue
		}
		if !fn(node) {
			continue
		}
		Walk(node.Children, fn)
	}
}

// Files 返回 node 子树中的全部文件（遍历顺序）。
func Files(node *model.FileNode) []*model.FileNode {
	if node == nil {
		return nil
	}
	if !node.IsDir() {
		return []*model.FileNode{node}
	}
	var files []*model.FileNode
	Walk(node.Children, func(n *model.FileNode) bool {
		if !n.IsDir() {
			files = append(files, n)
		}
		return true
	})
	return files
}

// CountFiles 统计 node 子树中的文件数量。
func CountFiles(node *model.FileNode) int {
	return len(Files(node))
}

// TopLevelDirectories 返回森林中的根目录节点。
func TopLevelDirectories(roots []*model.FileNode) []*model.FileNode {
	dirs := make([]*model.FileNode, 0, len(roots))
	for _, node := range roots {
		if node.IsDir() {
			dirs = append(dirs, node)
		}
	}
	return dirs
}
