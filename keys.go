package suiteprefs

// Storage slot names. Each preference owns exactly one slot; slots are never shared.
const (
	// KeyThemeMode holds the JSON-encoded theme mode ("light", "dark", "auto", "custom").
	KeyThemeMode = "theme_mode"
	// KeyThemeCustom holds the JSON-encoded active custom theme.
	KeyThemeCustom = "theme_custom"
	// KeyLanguage holds the JSON-encoded active language code.
	KeyLanguage = "app_language"
	// KeyAnalyticsConsent holds the JSON-encoded analytics consent flag.
	KeyAnalyticsConsent = "analytics_consent"
	// KeyErrorTrackingConsent holds the JSON-encoded error tracking consent flag.
	KeyErrorTrackingConsent = "error_tracking_consent"
)
