package profile

// Profile is the structured view of who the assistant is serving:
// identity basics, the persona the user prefers to talk to, and the
// standing facts worth prepending to every prompt.
type Profile struct {
	Identity      Identity
	ActivePersona string
	Values        []string
	FocusAreas    []string
	Communication Communication
}

// Identity captures the user's name and standing roles.
type Identity struct {
	PreferredName string
	Roles         []string          // e.g. "student", "founder"
	Timezone      string
	Details       map[string]string // e.g. "school" → "CMU"
}

// Communication captures how the user wants responses shaped.
type Communication struct {
	Tone        string // e.g. "direct, encouraging"
	Format      string // e.g. "short paragraphs"
	DetailLevel string // e.g. "skip basics"
}
