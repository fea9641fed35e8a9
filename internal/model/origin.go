package model

// Origin 标记结果来自真实上游还是本地合成。
type Origin string

const (
	OriginGenuine     Origin = "genuine"
	OriginSynthesized Origin = "synthesized"
	OriginMixed       Origin = "mixed"
)

// CombineOrigins 合并多个部分结果的来源：全部一致时保持原值，否则为 mixed。
func CombineOrigins(origins ...Origin) Origin {
	var combined Origin
	for _, o := range origins {
		if o == "" {
			continue
		}
		switch combined {
		case "":
			combined = o
		case o:
		default:
			return OriginMixed
		}
	}
	if combined == "" {
		return OriginGenuine
	}
	return combined
}
