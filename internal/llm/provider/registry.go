package provider

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrEmptyCompletion 表示响应结构合法但没有可用文本。
var ErrEmptyCompletion = errors.New("completion contained no text")

// Request 是与提供方无关的一次补全请求。
type Request struct {
	Model     string
	System    string
	Prompt    string
	MaxTokens int
}

// Spec 描述一个提供方的线格式。Headers 返回鉴权等请求头，Encode/Decode 负责请求体与响应文本。
type Spec struct {
	Key            string
	Description    string
	DefaultBaseURL string
	DefaultModel   string
	// Placeholder 是示例配置中的占位凭证，视同未配置。
	Placeholder string
	Path        string
	Headers     func(apiKey string) map[string]string
	Encode      func(req Request) ([]byte, error)
	Decode      func(body []byte) (string, error)
}

var globalRegistry = newRegistry()

type registry struct {
	mu    sync.RWMutex
	specs map[string]Spec
}

func newRegistry() *registry {
	return &registry{specs: make(map[string]Spec)}
}

// Register 将提供方加入全局注册表，重复键会返回错误。
func Register(spec Spec) error {
	return globalRegistry.register(spec)
}

// MustRegister 在注册失败时 panic，适合提供方 init() 中调用。
func MustRegister(spec Spec) {
	if err := Register(spec); err != nil {
		panic(err)
	}
}

// Resolve 返回指定键的提供方，大小写不敏感。
func Resolve(key string) (Spec, bool) {
	return globalRegistry.resolve(key)
}

// List 返回按键排序的提供方列表。
func List() []Spec {
	return globalRegistry.list()
}

// Keys 返回所有已注册提供方的键值，供配置校验提示使用。
func Keys() []string {
	items := List()
	result := make([]string, len(items))
	for i, spec := range items {
		result[i] = spec.Key
	}
	return result
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

func (r *registry) register(spec Spec) error {
	key := normalizeKey(spec.Key)
	if key == "" {
		return fmt.Errorf("provider key is required")
	}
	if spec.Encode == nil || spec.Decode == nil {
		return fmt.Errorf("provider %s must define Encode and Decode", key)
	}
	spec.Key = key

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.specs[key]; exists {
		return fmt.Errorf("provider %s already registered", key)
	}
	r.specs[key] = spec
	return nil
}

func (r *registry) resolve(key string) (Spec, bool) {
	normalized := normalizeKey(key)
	if normalized == "" {
		return Spec{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	spec, ok := r.specs[normalized]
	return spec, ok
}

func (r *registry) list() []Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.specs) == 0 {
		return nil
	}

	keys := make([]string, 0, len(r.specs))
	for key := range r.specs {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	result := make([]Spec, 0, len(keys))
	for _, key := range keys {
		result = append(result, r.specs[key])
	}
	return result
}
