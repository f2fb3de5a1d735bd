package styles

// LightTheme is used when the host reports light mode.
var LightTheme = Theme{
	Name: "light",
	Tokens: ThemeTokens{
		Text:      "#1F2328",
		TextMuted: "#59636E",
		Border:    "#D1D9E0",
		Accent:    "#0969DA",
		Focus:     "#8250DF",
		Success:   "#1A7F37",
		Warning:   "#9A6700",
		Error:     "#CF222E",
	},
}
