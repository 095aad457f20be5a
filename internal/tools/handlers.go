package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jansahayak/agent/domain/entities"
	"github.com/jansahayak/agent/domain/repositories"
)

// SessionHooks are the callbacks through which tool handlers reach
// session-owned mutable state. Handlers never touch that state directly;
// the session driver runs the hooks on its own event loop.
type SessionHooks struct {
	// Profile returns a snapshot of the current user profile.
	Profile func() entities.UserProfile
	// UpdateProfile merges the given fields into the profile.
	UpdateProfile func(entities.ProfileUpdate)
	// ActiveLanguage returns the current conversation language code.
	ActiveLanguage func() string
	// SetLanguage switches the conversation language for subsequent turns.
	SetLanguage func(code string)
}

type searchArgs struct {
	Category string `json:"category"`
	Region   string `json:"region"`
	Language string `json:"language"`
}

type validateArgs struct {
	SchemeID string `json:"schemeId"`
}

type applyArgs struct {
	SchemeName string `json:"schemeName"`
}

type changeLanguageArgs struct {
	LanguageCode string `json:"language_code"`
}

// fallbackPortalURL is returned by apply_for_scheme when no program matches.
const fallbackPortalURL = "https://india.gov.in"

// RegisterAll wires the five scheme tools into the registry. fallbackLang
// is the language retried when a search finds no translation in the active
// one.
func RegisterAll(reg *Registry, cat *Catalogue, hooks SessionHooks, fallbackLang string) error {
	register := func(decl repositories.ToolDeclaration, fn Func) error {
		return reg.Register(decl, fn)
	}

	if err := register(searchSchemesDecl(), func(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
		var args searchArgs
		if err := decodeArgs(raw, &args); err != nil {
			return nil, err
		}
		lang := args.Language
		if lang == "" && hooks.ActiveLanguage != nil {
			lang = hooks.ActiveLanguage()
		}
		matches := cat.Search(args.Category, args.Region, lang, fallbackLang)
		if matches == nil {
			matches = []entities.Scheme{}
		}
		return json.Marshal(matches)
	}); err != nil {
		return err
	}

	if err := register(validateEligibilityDecl(), func(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
		var args validateArgs
		if err := decodeArgs(raw, &args); err != nil {
			return nil, err
		}
		scheme, ok := cat.ByIDPrefix(args.SchemeID)
		if !ok {
			return json.Marshal("Scheme not found.")
		}
		var profile entities.UserProfile
		if hooks.Profile != nil {
			profile = hooks.Profile()
		}
		return json.Marshal(eligibilityVerdict(scheme, profile))
	}); err != nil {
		return err
	}

	if err := register(applyForSchemeDecl(), func(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
		var args applyArgs
		if err := decodeArgs(raw, &args); err != nil {
			return nil, err
		}
		url := fallbackPortalURL
		instructions := "No exact match was found; start from the national services portal."
		if scheme, ok := cat.ByName(args.SchemeName); ok {
			url = scheme.URL
			instructions = fmt.Sprintf("Apply for %s through the verified portal link.", scheme.Name)
		}
		return json.Marshal(map[string]string{"url": url, "instructions": instructions})
	}); err != nil {
		return err
	}

	if err := register(updateUserProfileDecl(), func(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
		var update entities.ProfileUpdate
		if err := decodeArgs(raw, &update); err != nil {
			return nil, err
		}
		if hooks.UpdateProfile != nil {
			hooks.UpdateProfile(update)
		}
		return json.Marshal("User profile updated successfully in memory.")
	}); err != nil {
		return err
	}

	return register(changeLanguageDecl(), func(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
		var args changeLanguageArgs
		if err := decodeArgs(raw, &args); err != nil {
			return nil, err
		}
		if _, ok := entities.LanguageByCode(args.LanguageCode); !ok {
			return json.Marshal(fmt.Sprintf("Unsupported language code %q.", args.LanguageCode))
		}
		if hooks.SetLanguage != nil {
			hooks.SetLanguage(args.LanguageCode)
		}
		return json.Marshal("Language changed.")
	})
}

// eligibilityVerdict applies the hard disqualification rules on top of the
// stored profile.
func eligibilityVerdict(scheme entities.Scheme, profile entities.UserProfile) string {
	if scheme.Name == "Sukanya Samriddhi Yojana" &&
		profile.Gender != nil && *profile.Gender == "male" {
		return "Evaluation Result: You are likely ineligible as this is for girl children."
	}
	return fmt.Sprintf("Evaluation Result: You meet basic criteria for %s. Verified application is recommended.", scheme.Name)
}

func decodeArgs(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode tool arguments: %w", err)
	}
	return nil
}

func searchSchemesDecl() repositories.ToolDeclaration {
	return repositories.ToolDeclaration{
		Name:        "search_schemes",
		Description: "Search for government schemes based on category, state and language. Returns verified portal URLs.",
		Parameters: []repositories.ToolParameter{
			{Name: "category", Type: "string", Description: `Category like "farmer", "student", "women", "disability".`, Required: true},
			{Name: "region", Type: "string", Description: "The Indian state name.", Required: true},
			{Name: "language", Type: "string", Description: "ISO language code of the records to return.", Required: false},
		},
	}
}

func validateEligibilityDecl() repositories.ToolDeclaration {
	return repositories.ToolDeclaration{
		Name:        "validate_eligibility",
		Description: "Check if the user is eligible for a specific scheme based on their stored profile data.",
		Parameters: []repositories.ToolParameter{
			{Name: "schemeId", Type: "string", Description: "Identifier of the scheme to check.", Required: true},
		},
	}
}

func applyForSchemeDecl() repositories.ToolDeclaration {
	return repositories.ToolDeclaration{
		Name:        "apply_for_scheme",
		Description: "Provide a direct application link and instructions for a scheme.",
		Parameters: []repositories.ToolParameter{
			{Name: "schemeName", Type: "string", Description: "Name of the scheme to apply for.", Required: true},
		},
	}
}

func updateUserProfileDecl() repositories.ToolDeclaration {
	return repositories.ToolDeclaration{
		Name:        "update_user_profile",
		Description: "Autonomously update the user profile with facts learned during conversation to maintain memory.",
		Parameters: []repositories.ToolParameter{
			{Name: "age", Type: "number", Description: "User age if mentioned.", Required: false},
			{Name: "occupation", Type: "string", Description: "User profession (e.g. Farmer, Teacher).", Required: false},
			{Name: "income", Type: "number", Description: "Annual income if mentioned.", Required: false},
			{Name: "gender", Type: "string", Description: "User gender.", Required: false},
		},
	}
}

func changeLanguageDecl() repositories.ToolDeclaration {
	return repositories.ToolDeclaration{
		Name:        "change_language",
		Description: "Change the language of the conversation.",
		Parameters: []repositories.ToolParameter{
			{Name: "language_code", Type: "string", Description: "ISO code (hi, te, mr, etc.)", Required: true},
		},
	}
}
