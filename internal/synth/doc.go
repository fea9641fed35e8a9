// Package synth 在凭证缺失或上游不可用时，仅依据本地可得的结构信号（README、
// 目录树、issue 元数据）生成与 LLM/GitHub 结果同形的领域对象。所有函数都是纯函数：
// 不做 I/O、不依赖随机数或时钟，相同输入必然得到相同输出。
package synth
