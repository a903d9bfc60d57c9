package analysis

// countryNames maps the country keys of accounts.yaml to display names.
var countryNames = map[string]string{
	"nederland":   "Nederland",
	"turkije":     "Turkije",
	"india":       "India",
	"china":       "China",
	"indonesie":   "Indonesie",
	"filipijnen":  "Filipijnen",
	"marokko":     "Marokko",
	"zuid_afrika": "Zuid-Afrika",
	"vae":         "VAE",
	"ksa":         "Saoedi-Arabie",
	"vk":          "Verenigd Koninkrijk",
	"suriname":    "Suriname",
	"thailand":    "Thailand",
	"rusland":     "Rusland",
	"ghana":       "Ghana",
	"iran":        "Iran",
	"koeweit":     "Koeweit",
	"egypte":      "Egypte",
	"pakistan":    "Pakistan",
	"jordanie":    "Jordanie",
	"oman":        "Oman",
}

// CountryName returns the display name of a country key, or the key itself.
func CountryName(key string) string {
	if name, ok := countryNames[key]; ok {
		return name
	}
	return key
}
