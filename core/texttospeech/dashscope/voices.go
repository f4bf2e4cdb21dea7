package dashscope

const (
	modelCosyVoiceV1 = "cosyvoice-v1"
	modelCosyVoiceV2 = "cosyvoice-v2"

	defaultVoice = "longxiaochun"
)

// cosyVoiceV2Voices are voices that only exist on the v2 model even though
// their ids carry the v1 "long" prefix.
var cosyVoiceV2Voices = map[string]struct{}{
	"longyingxiao": {},
	"longyingxun":  {},
	"longanyue":    {},
}

// ModelForVoice maps a voice id to the synthesis model that serves it.
func ModelForVoice(voice string) string {
	if _, ok := cosyVoiceV2Voices[voice]; ok {
		return modelCosyVoiceV2
	}
	if len(voice) >= 4 && (voice[:4] == "long" || voice[:4] == "loon") {
		return modelCosyVoiceV1
	}
	return modelCosyVoiceV2
}
