package entities

// Language is one of the agent's supported conversation languages.
type Language struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	NativeName string `json:"native_name"`
}

// SupportedLanguages is the fixed language catalogue; the first entry is the
// default.
var SupportedLanguages = []Language{
	{Code: "hi", Name: "Hindi", NativeName: "हिन्दी"},
	{Code: "te", Name: "Telugu", NativeName: "తెలుగు"},
	{Code: "mr", Name: "Marathi", NativeName: "मराठी"},
	{Code: "ta", Name: "Tamil", NativeName: "தமிழ்"},
	{Code: "bn", Name: "Bengali", NativeName: "বাংলা"},
	{Code: "kn", Name: "Kannada", NativeName: "ಕನ್ನಡ"},
	{Code: "ml", Name: "Malayalam", NativeName: "മലയാളം"},
	{Code: "gu", Name: "Gujarati", NativeName: "ગુજરાતી"},
	{Code: "pa", Name: "Punjabi", NativeName: "ਪੰਜਾਬੀ"},
}

// LanguageByCode resolves a language by its ISO code.
func LanguageByCode(code string) (Language, bool) {
	for _, l := range SupportedLanguages {
		if l.Code == code {
			return l, true
		}
	}
	return Language{}, false
}

// IndianStates is the region catalogue used for scheme filtering and manual
// region selection.
var IndianStates = []string{
	"Andhra Pradesh", "Arunachal Pradesh", "Assam", "Bihar", "Chhattisgarh",
	"Delhi", "Goa", "Gujarat", "Haryana", "Himachal Pradesh", "Jharkhand",
	"Karnataka", "Kerala", "Madhya Pradesh", "Maharashtra", "Manipur",
	"Meghalaya", "Mizoram", "Nagaland", "Odisha", "Punjab", "Rajasthan",
	"Sikkim", "Tamil Nadu", "Telangana", "Tripura", "Uttar Pradesh",
	"Uttarakhand", "West Bengal",
}

// ValidRegion reports whether name is a known state.
func ValidRegion(name string) bool {
	for _, s := range IndianStates {
		if s == name {
			return true
		}
	}
	return false
}
