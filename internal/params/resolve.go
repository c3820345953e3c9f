package params

// DefaultNegativePrompt is applied unless a model, user or request supplies its own.
const DefaultNegativePrompt = "low quality, bad anatomy, blurry, disfigured, ugly"

var builtinDefaults = Values{
	KeyNegativePrompt:    DefaultNegativePrompt,
	KeyWidth:             1024,
	KeyHeight:            1024,
	KeyNumOutputs:        1,
	KeyScheduler:         "K_EULER",
	KeyNumInferenceSteps: 30,
	KeyGuidanceScale:     7.5,
}

// Defaults returns a copy of the built-in parameter set.
func Defaults() Values {
	return builtinDefaults.Clone()
}

// Resolve produces the parameter set for one generation call.
//
// Sources are overlaid built-in defaults < modelDefaults < userCustom < overrides.
// When the merged set carries an aspect_ratio other than "custom", width and
// height are replaced by the derived dimensions; an unparseable ratio leaves
// them untouched. The prompt argument always wins over a "prompt" key in any
// layer. Inputs are never modified.
func Resolve(prompt string, modelDefaults, userCustom, overrides Values) Values {
	out := Merge(builtinDefaults, modelDefaults, userCustom, overrides)
	out[KeyPrompt] = prompt

	ar, ok := out.AspectRatio()
	if !ok || ar == AspectRatioCustom {
		return out
	}
	if d, ok := Derive(ar, out.Megapixels()); ok {
		out[KeyWidth] = d.Width
		out[KeyHeight] = d.Height
	}
	return out
}
