package entities

import "strconv"

// ThemeBackgroundImage configures an optional background picture.
type ThemeBackgroundImage struct {
	Enabled   bool    `json:"enabled"`
	URL       string  `json:"url"`
	Opacity   float64 `json:"opacity"`
	BlendMode string  `json:"blendMode"`
	Position  string  `json:"position"`
	Size      string  `json:"size"`
	Repeat    string  `json:"repeat"`
}

// ThemeAnimation configures the animated background.
type ThemeAnimation struct {
	Enabled          bool    `json:"enabled"`
	Type             string  `json:"type"`
	Speed            float64 `json:"speed"`
	Intensity        float64 `json:"intensity"`
	ParticleCount    int     `json:"particleCount"`
	ParticleSize     float64 `json:"particleSize"`
	ConnectionLines  bool    `json:"connectionLines"`
	MouseInteraction bool    `json:"mouseInteraction"`
}

// ThemeEffects toggles visual effects.
type ThemeEffects struct {
	Blur      bool `json:"blur"`
	Glow      bool `json:"glow"`
	Parallax  bool `json:"parallax"`
	Chromatic bool `json:"chromatic"`
	Noise     bool `json:"noise"`
	Vignette  bool `json:"vignette"`
}

// Theme is a named colour and effect scheme for the UI.
type Theme struct {
	ID              string                `json:"id"`
	Name            string                `json:"name"`
	Primary         string                `json:"primary"`
	Secondary       string                `json:"secondary"`
	Background      string                `json:"background"`
	Surface         string                `json:"surface"`
	Text            string                `json:"text"`
	TextSecondary   string                `json:"textSecondary"`
	Border          string                `json:"border"`
	Shadow          string                `json:"shadow"`
	Gradient        string                `json:"gradient"`
	ParticleColor   string                `json:"particleColor"`
	BackgroundImage *ThemeBackgroundImage `json:"backgroundImage,omitempty"`
	Animation       ThemeAnimation        `json:"animation"`
	Effects         ThemeEffects          `json:"effects"`
	IsCustom        bool                  `json:"isCustom,omitempty"`
}

// Clone copies the theme including the background image pointer.
func (t Theme) Clone() Theme {
	if t.BackgroundImage != nil {
		bg := *t.BackgroundImage
		t.BackgroundImage = &bg
	}
	return t
}

// CSSVariables renders the custom properties the UI applies to its root element.
func (t Theme) CSSVariables() map[string]string {
	flag := func(b bool) string {
		if b {
			return "1"
		}
		return "0"
	}
	num := func(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

	return map[string]string{
		"--theme-primary":             t.Primary,
		"--theme-secondary":           t.Secondary,
		"--theme-background":          t.Background,
		"--theme-surface":             t.Surface,
		"--theme-text":                t.Text,
		"--theme-text-secondary":      t.TextSecondary,
		"--theme-border":              t.Border,
		"--theme-shadow":              t.Shadow,
		"--theme-gradient":            t.Gradient,
		"--theme-particle-color":      t.ParticleColor,
		"--theme-animation-enabled":   flag(t.Animation.Enabled),
		"--theme-animation-speed":     num(t.Animation.Speed),
		"--theme-animation-intensity": num(t.Animation.Intensity),
		"--theme-blur-enabled":        flag(t.Effects.Blur),
		"--theme-glow-enabled":        flag(t.Effects.Glow),
		"--theme-parallax-enabled":    flag(t.Effects.Parallax),
	}
}

// DefaultThemeID is applied when nothing else is selected.
const DefaultThemeID = "aurora"

func defaultBackgroundImage() *ThemeBackgroundImage {
	return &ThemeBackgroundImage{Opacity: 0.8, BlendMode: "overlay", Position: "center", Size: "cover", Repeat: "no-repeat"}
}

// BuiltinThemes returns fresh copies of the predefined themes.
func BuiltinThemes() []Theme {
	return []Theme{
		{
			ID: "aurora", Name: "极光", Primary: "#4facfe", Secondary: "#00f2fe",
			Background: "linear-gradient(135deg, #667eea 0%, #764ba2 100%)", Surface: "rgba(255, 255, 255, 0.1)",
			Text: "#ffffff", TextSecondary: "rgba(255, 255, 255, 0.7)", Border: "rgba(255, 255, 255, 0.2)",
			Shadow: "0 8px 32px rgba(31, 38, 135, 0.37)", Gradient: "linear-gradient(135deg, #667eea 0%, #764ba2 100%)",
			ParticleColor: "#ffffff", BackgroundImage: defaultBackgroundImage(),
			Animation: ThemeAnimation{Enabled: true, Type: "particles", Speed: 1, Intensity: 0.8, ParticleCount: 80, ParticleSize: 3, ConnectionLines: true, MouseInteraction: true},
			Effects:   ThemeEffects{Blur: true, Glow: true, Vignette: true},
		},
		{
			ID: "sunset", Name: "日落", Primary: "#ff9a9e", Secondary: "#fecfef",
			Background: "linear-gradient(135deg, #ff9a9e 0%, #fecfef 50%, #fecfef 100%)", Surface: "rgba(255, 255, 255, 0.15)",
			Text: "#ffffff", TextSecondary: "rgba(255, 255, 255, 0.8)", Border: "rgba(255, 255, 255, 0.25)",
			Shadow: "0 8px 32px rgba(255, 154, 158, 0.3)", Gradient: "linear-gradient(135deg, #ff9a9e 0%, #fecfef 100%)",
			ParticleColor: "#ffffff", BackgroundImage: defaultBackgroundImage(),
			Animation: ThemeAnimation{Enabled: true, Type: "gradient", Speed: 0.5, Intensity: 0.6, ParticleCount: 60, ParticleSize: 2, MouseInteraction: true},
			Effects:   ThemeEffects{Glow: true, Parallax: true, Chromatic: true},
		},
		{
			ID: "ocean", Name: "海洋", Primary: "#2196f3", Secondary: "#21cbf3",
			Background: "linear-gradient(135deg, #667eea 0%, #764ba2 100%)", Surface: "rgba(255, 255, 255, 0.1)",
			Text: "#ffffff", TextSecondary: "rgba(255, 255, 255, 0.7)", Border: "rgba(255, 255, 255, 0.2)",
			Shadow: "0 8px 32px rgba(33, 150, 243, 0.3)", Gradient: "linear-gradient(135deg, #2196f3 0%, #21cbf3 100%)",
			ParticleColor: "#ffffff", BackgroundImage: defaultBackgroundImage(),
			Animation: ThemeAnimation{Enabled: true, Type: "waves", Speed: 0.8, Intensity: 0.7, ParticleCount: 40, ParticleSize: 4},
			Effects:   ThemeEffects{Blur: true, Parallax: true, Noise: true, Vignette: true},
		},
		{
			ID: "forest", Name: "森林", Primary: "#4caf50", Secondary: "#8bc34a",
			Background: "linear-gradient(135deg, #667eea 0%, #764ba2 100%)", Surface: "rgba(255, 255, 255, 0.1)",
			Text: "#ffffff", TextSecondary: "rgba(255, 255, 255, 0.7)", Border: "rgba(255, 255, 255, 0.2)",
			Shadow: "0 8px 32px rgba(76, 175, 80, 0.3)", Gradient: "linear-gradient(135deg, #4caf50 0%, #8bc34a 100%)",
			ParticleColor: "#ffffff", BackgroundImage: defaultBackgroundImage(),
			Animation: ThemeAnimation{Enabled: true, Type: "particles", Speed: 0.3, Intensity: 0.4, ParticleCount: 50, ParticleSize: 2, ConnectionLines: true},
			Effects:   ThemeEffects{Parallax: true},
		},
		{
			ID: "dark", Name: "暗夜", Primary: "#bb86fc", Secondary: "#03dac6",
			Background: "linear-gradient(135deg, #1a1a2e 0%, #16213e 50%, #0f3460 100%)", Surface: "rgba(255, 255, 255, 0.05)",
			Text: "#ffffff", TextSecondary: "rgba(255, 255, 255, 0.6)", Border: "rgba(255, 255, 255, 0.1)",
			Shadow: "0 8px 32px rgba(0, 0, 0, 0.5)", Gradient: "linear-gradient(135deg, #1a1a2e 0%, #16213e 50%, #0f3460 100%)",
			ParticleColor: "#bb86fc", BackgroundImage: defaultBackgroundImage(),
			Animation: ThemeAnimation{Enabled: true, Type: "particles", Speed: 1.2, Intensity: 0.9, ParticleCount: 100, ParticleSize: 4, MouseInteraction: true},
			Effects:   ThemeEffects{Blur: true, Glow: true, Chromatic: true, Noise: true, Vignette: true},
		},
		{
			ID: "cyberpunk", Name: "赛博朋克", Primary: "#ff0080", Secondary: "#00ffff",
			Background: "linear-gradient(135deg, #0a0a0a 0%, #1a0033 50%, #330066 100%)", Surface: "rgba(255, 0, 128, 0.1)",
			Text: "#00ffff", TextSecondary: "rgba(0, 255, 255, 0.7)", Border: "rgba(255, 0, 128, 0.3)",
			Shadow: "0 0 20px rgba(255, 0, 128, 0.5)", Gradient: "linear-gradient(135deg, #ff0080 0%, #00ffff 100%)",
			ParticleColor: "#ff0080", BackgroundImage: defaultBackgroundImage(),
			Animation: ThemeAnimation{Type: "none"},
		},
		{
			ID: "spring", Name: "春日", Primary: "#ff6b9d", Secondary: "#c44569",
			Background: "linear-gradient(135deg, #ffeaa7 0%, #fab1a0 50%, #fd79a8 100%)", Surface: "rgba(255, 255, 255, 0.2)",
			Text: "#2d3436", TextSecondary: "rgba(45, 52, 54, 0.7)", Border: "rgba(255, 107, 157, 0.3)",
			Shadow: "0 8px 32px rgba(255, 107, 157, 0.2)", Gradient: "linear-gradient(135deg, #ff6b9d 0%, #c44569 100%)",
			ParticleColor: "#ff6b9d", BackgroundImage: defaultBackgroundImage(),
			Animation: ThemeAnimation{Enabled: true, Type: "gradient", Speed: 0.4, Intensity: 0.5, ParticleCount: 30, ParticleSize: 3, MouseInteraction: true},
			Effects:   ThemeEffects{Parallax: true},
		},
		{
			ID: "galaxy", Name: "星河", Primary: "#8e44ad", Secondary: "#3498db",
			Background: "linear-gradient(135deg, #000428 0%, #004e92 100%)", Surface: "rgba(255, 255, 255, 0.08)",
			Text: "#ffffff", TextSecondary: "rgba(255, 255, 255, 0.8)", Border: "rgba(142, 68, 173, 0.3)",
			Shadow: "0 8px 32px rgba(142, 68, 173, 0.4)", Gradient: "linear-gradient(135deg, #8e44ad 0%, #3498db 100%)",
			ParticleColor: "#8e44ad", BackgroundImage: defaultBackgroundImage(),
			Animation: ThemeAnimation{Enabled: true, Type: "particles", Speed: 0.6, Intensity: 0.8, ParticleCount: 120, ParticleSize: 2, ConnectionLines: true, MouseInteraction: true},
			Effects:   ThemeEffects{Blur: true, Glow: true, Parallax: true, Vignette: true},
		},
	}
}
