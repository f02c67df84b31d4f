package gmail

import (
	"fmt"
	"html/template"
	"sort"
	"strings"
)

// themeData is the personalization injected into a theme's body template
type themeData struct {
	RecipientName string
	SenderName    string
	Message       string
}

// theme pairs a themed subject line with an HTML body template
type theme struct {
	subject string
	body    *template.Template
}

var themes = map[string]*theme{
	"birthday": {
		subject: "🎉 Happy Birthday! Let's Celebrate! 🎂",
		body: template.Must(template.New("birthday").Parse(`
<html>
<body style="font-family: Arial, sans-serif; background: linear-gradient(135deg, #667eea 0%, #764ba2 100%); padding: 40px;">
    <div style="max-width: 600px; margin: 0 auto; background: white; border-radius: 20px; padding: 40px; box-shadow: 0 10px 40px rgba(0,0,0,0.2);">
        <h1 style="color: #667eea; text-align: center; font-size: 48px; margin-bottom: 20px;">🎉 Happy Birthday{{if .RecipientName}}, {{.RecipientName}}{{end}}! 🎉</h1>
        <p style="font-size: 18px; color: #333; line-height: 1.6;">
            Wishing you a day filled with happiness, laughter, and all your favorite things!
            May this year bring you endless joy and amazing adventures! 🎂🎈
        </p>
{{if .Message}}        <p style="font-size: 18px; color: #333; line-height: 1.6;">{{.Message}}</p>
{{end}}        <div style="text-align: center; margin: 30px 0;">
            <div style="font-size: 60px;">🎁 🎊 🎈 🎂 🎉</div>
        </div>
        <p style="font-size: 16px; color: #666; text-align: center;">
            Have an absolutely wonderful day!{{if .SenderName}}<br>- {{.SenderName}}{{end}}
        </p>
    </div>
</body>
</html>
`)),
	},
	"pirate": {
		subject: "⚓ Ahoy Matey! A Message from the Seven Seas! 🏴‍☠️",
		body: template.Must(template.New("pirate").Parse(`
<html>
<body style="font-family: 'Courier New', monospace; background: #1a1a2e; padding: 40px;">
    <div style="max-width: 600px; margin: 0 auto; background: #16213e; border: 3px solid #e94560; border-radius: 15px; padding: 40px; box-shadow: 0 10px 40px rgba(233, 69, 96, 0.3);">
        <h1 style="color: #e94560; text-align: center; font-size: 42px; margin-bottom: 20px;">⚓ Ahoy{{if .RecipientName}}, {{.RecipientName}}{{else}} Matey{{end}}! ⚓</h1>
        <p style="font-size: 18px; color: #f1f1f1; line-height: 1.6;">
            Arrr! This be a message from the high seas! 🏴‍☠️
        </p>
        <p style="font-size: 16px; color: #ddd; line-height: 1.6; font-style: italic;">
            May yer sails be full and yer treasure chest overflow with doubloons!
            Keep a weather eye on the horizon, and may the winds be ever in yer favor!
        </p>
{{if .Message}}        <p style="font-size: 16px; color: #ddd; line-height: 1.6;">{{.Message}}</p>
{{end}}        <div style="text-align: center; margin: 30px 0; font-size: 50px;">
            🏴‍☠️ ⚓ 🗺️ 💰 ⚔️
        </div>
        <p style="font-size: 14px; color: #999; text-align: center;">
            Fair winds and following seas!<br>
            - {{if .SenderName}}{{.SenderName}}{{else}}Captain of the Digital Seas{{end}}
        </p>
    </div>
</body>
</html>
`)),
	},
	"space": {
		subject: "🚀 Greetings from the Cosmos! ✨",
		body: template.Must(template.New("space").Parse(`
<html>
<body style="font-family: 'Arial', sans-serif; background: linear-gradient(135deg, #0f0c29 0%, #302b63 50%, #24243e 100%); padding: 40px;">
    <div style="max-width: 600px; margin: 0 auto; background: rgba(255,255,255,0.05); border: 2px solid #4facfe; border-radius: 20px; padding: 40px; box-shadow: 0 0 40px rgba(79, 172, 254, 0.3);">
        <h1 style="color: #4facfe; text-align: center; font-size: 42px; margin-bottom: 20px; text-shadow: 0 0 20px rgba(79, 172, 254, 0.5);">🚀 Cosmic Greetings{{if .RecipientName}}, {{.RecipientName}}{{end}}! 🌟</h1>
        <p style="font-size: 18px; color: #e0e0e0; line-height: 1.6;">
            Transmitting message from the outer reaches of the galaxy!
            May your journey through the cosmos be filled with wonder and discovery! 🌌
        </p>
{{if .Message}}        <p style="font-size: 18px; color: #e0e0e0; line-height: 1.6;">{{.Message}}</p>
{{end}}        <div style="text-align: center; margin: 30px 0; font-size: 50px;">
            🌍 🛸 ⭐ 🌙 🪐
        </div>
        <p style="font-size: 14px; color: #999; text-align: center;">
            To infinity and beyond!<br>
            - {{if .SenderName}}{{.SenderName}}{{else}}Your Intergalactic Friend{{end}}
        </p>
    </div>
</body>
</html>
`)),
	},
	"medieval": {
		subject: "⚔️ A Royal Decree from the Kingdom! 👑",
		body: template.Must(template.New("medieval").Parse(`
<html>
<body style="font-family: 'Georgia', serif; background: linear-gradient(135deg, #2c1810 0%, #4a2c1a 100%); padding: 40px;">
    <div style="max-width: 600px; margin: 0 auto; background: #f4e4c1; border: 5px solid #8b6914; border-radius: 10px; padding: 40px; box-shadow: 0 10px 40px rgba(0,0,0,0.5);">
        <h1 style="color: #8b6914; text-align: center; font-size: 42px; margin-bottom: 20px; font-family: 'Georgia', serif;">⚔️ Royal Decree ⚔️</h1>
        <p style="font-size: 18px; color: #2c1810; line-height: 1.6; font-style: italic;">
            Hear ye, hear ye! By order of the realm, we extend our warmest greetings{{if .RecipientName}} to {{.RecipientName}}{{end}}!
            May your days be filled with honor, valor, and prosperity! 👑
        </p>
{{if .Message}}        <p style="font-size: 18px; color: #2c1810; line-height: 1.6;">{{.Message}}</p>
{{end}}        <div style="text-align: center; margin: 30px 0; font-size: 50px;">
            🏰 ⚔️ 🛡️ 👑 🐉
        </div>
        <p style="font-size: 14px; color: #666; text-align: center;">
            Long live the kingdom!<br>
            - {{if .SenderName}}{{.SenderName}}{{else}}The Royal Court{{end}}
        </p>
    </div>
</body>
</html>
`)),
	},
	"superhero": {
		subject: "💥 Superhero Alert! You're Amazing! 🦸",
		body: template.Must(template.New("superhero").Parse(`
<html>
<body style="font-family: 'Impact', 'Arial Black', sans-serif; background: linear-gradient(135deg, #ff0844 0%, #ffb199 100%); padding: 40px;">
    <div style="max-width: 600px; margin: 0 auto; background: #fff; border: 5px solid #ff0844; border-radius: 15px; padding: 40px; box-shadow: 0 10px 40px rgba(255, 8, 68, 0.3);">
        <h1 style="color: #ff0844; text-align: center; font-size: 48px; margin-bottom: 20px; text-transform: uppercase;">💥 POW! 💥</h1>
        <p style="font-size: 18px; color: #333; line-height: 1.6; font-weight: bold;">
            Calling all heroes{{if .RecipientName}}, especially {{.RecipientName}}{{end}}! You have the power to make today AMAZING!
            Keep being the superhero you are! 🦸‍♀️🦸‍♂️
        </p>
{{if .Message}}        <p style="font-size: 18px; color: #333; line-height: 1.6;">{{.Message}}</p>
{{end}}        <div style="text-align: center; margin: 30px 0; font-size: 50px;">
            ⚡ 💪 🦸 🌟 💥
        </div>
        <p style="font-size: 14px; color: #666; text-align: center;">
            With great power comes great awesomeness!<br>
            - {{if .SenderName}}{{.SenderName}}{{else}}Your Superhero Squad{{end}}
        </p>
    </div>
</body>
</html>
`)),
	},
	"tropical": {
		subject: "🌴 Aloha! Tropical Vibes Coming Your Way! 🌺",
		body: template.Must(template.New("tropical").Parse(`
<html>
<body style="font-family: 'Arial', sans-serif; background: linear-gradient(135deg, #f093fb 0%, #f5576c 100%); padding: 40px;">
    <div style="max-width: 600px; margin: 0 auto; background: #fff; border-radius: 25px; padding: 40px; box-shadow: 0 10px 40px rgba(245, 87, 108, 0.3);">
        <h1 style="color: #f5576c; text-align: center; font-size: 48px; margin-bottom: 20px;">🌴 Aloha{{if .RecipientName}}, {{.RecipientName}}{{end}}! 🌺</h1>
        <p style="font-size: 18px; color: #333; line-height: 1.6;">
            Sending you tropical vibes and sunny smiles!
            May your day be as bright and beautiful as a beach sunset! 🌅
        </p>
{{if .Message}}        <p style="font-size: 18px; color: #333; line-height: 1.6;">{{.Message}}</p>
{{end}}        <div style="text-align: center; margin: 30px 0; font-size: 50px;">
            🌴 🌺 🥥 🏖️ 🌊
        </div>
        <p style="font-size: 14px; color: #666; text-align: center;">
            Stay breezy!<br>
            - {{if .SenderName}}{{.SenderName}}{{else}}Your Island Friends{{end}}
        </p>
    </div>
</body>
</html>
`)),
	},
}

// ListThemes returns the available theme names, sorted
func ListThemes() []string {
	names := make([]string, 0, len(themes))
	for name := range themes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ThemeSubject returns the default subject line for a theme
func ThemeSubject(name string) (string, error) {
	t, ok := themes[strings.ToLower(name)]
	if !ok {
		return "", fmt.Errorf("unknown theme %q, valid themes: %s", name, strings.Join(ListThemes(), ", "))
	}
	return t.subject, nil
}

// RenderTheme renders the themed HTML body for an email. RecipientName,
// senderName and message are optional personalizations; an unknown
// theme is an error naming the valid set.
func RenderTheme(name, recipientName, senderName, message string) (subject, body string, err error) {
	t, ok := themes[strings.ToLower(name)]
	if !ok {
		return "", "", fmt.Errorf("unknown theme %q, valid themes: %s", name, strings.Join(ListThemes(), ", "))
	}

	var sb strings.Builder
	if err := t.body.Execute(&sb, themeData{
		RecipientName: recipientName,
		SenderName:    senderName,
		Message:       message,
	}); err != nil {
		return "", "", fmt.Errorf("failed to render theme %q: %w", name, err)
	}

	return t.subject, sb.String(), nil
}
