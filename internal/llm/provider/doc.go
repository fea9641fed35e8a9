// Package provider 聚合 LLM 提供方的请求/响应线格式，并提供统一的注册入口。
//
// 提供方作者需要：
//   1. 在 internal/llm/provider/<key>/ 目录下实现 Encode/Decode；
//   2. 在 init() 中通过 MustRegister 注册 Spec；
//   3. 在 internal/config/modules.go 中以空白导入启用。
package provider
