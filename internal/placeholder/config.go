package placeholder

// Config holds the data the default cascade runs on. Empty fields take the
// built-in values, so a caller can override only the lists it cares about.
type Config struct {
	// Patterns are matched against the case-folded text.
	Patterns []string
	// Phrases are matched as substrings of the case-folded text.
	Phrases []string
	// GenericWords match the whole case-folded text.
	GenericWords []string
	// ContentPatterns mark text as authored content. Patterns match
	// case-insensitively.
	ContentPatterns []string

	MinLength           int
	MaxPlaceholderWords int
	ShortLength         int
	ShortWords          int
}

func DefaultConfig() Config {
	return Config{
		Patterns:            append([]string(nil), defaultPatterns...),
		Phrases:             append([]string(nil), defaultPhrases...),
		GenericWords:        append([]string(nil), defaultGenericWords...),
		ContentPatterns:     append([]string(nil), defaultContentPatterns...),
		MinLength:           3,
		MaxPlaceholderWords: 8,
		ShortLength:         30,
		ShortWords:          5,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Patterns == nil {
		c.Patterns = def.Patterns
	}
	if c.Phrases == nil {
		c.Phrases = def.Phrases
	}
	if c.GenericWords == nil {
		c.GenericWords = def.GenericWords
	}
	if c.ContentPatterns == nil {
		c.ContentPatterns = def.ContentPatterns
	}
	if c.MinLength <= 0 {
		c.MinLength = def.MinLength
	}
	if c.MaxPlaceholderWords <= 0 {
		c.MaxPlaceholderWords = def.MaxPlaceholderWords
	}
	if c.ShortLength <= 0 {
		c.ShortLength = def.ShortLength
	}
	if c.ShortWords <= 0 {
		c.ShortWords = def.ShortWords
	}
	return c
}

var defaultPatterns = []string{
	`^click\s+to\s+add`,
	`^haga\s+clic\s+(para|aquí)`,
	`^(add|insert|enter)\s+\w+`,
	`^(agregar|insertar|escribir)`,
	`^(adicionar|inserir)`,
	`^(ajouter|insérer)`,
	`^\[.+\]$`,
	`^<.+>$`,
	`^\{.+\}$`,
	`^_{2,}$`,
	`^\.\.\.$`,
	`^lorem\s+ipsum`,
	`^sample\s+text`,
	`^texto\s+de\s+(ejemplo|muestra)`,
}

// English, Spanish, Portuguese, French and German template phrases.
var defaultPhrases = []string{
	"click to add", "add title", "add subtitle", "add text", "enter text",
	"type here", "your text here", "insert text", "edit text", "placeholder",
	"sample", "example text",

	"haga clic", "agregar título", "agregar texto", "escriba aquí",
	"su texto aquí", "insertar texto", "texto de ejemplo", "editar texto",
	"título principal", "subtítulo",

	"clique para", "adicionar título", "adicionar texto", "digite aqui",
	"seu texto aqui", "inserir texto",

	"cliquez pour", "ajouter titre", "ajouter texte", "tapez ici",
	"votre texte ici", "insérer texte",

	"klicken sie", "text hinzufügen", "titel hinzufügen",
}

var defaultGenericWords = []string{
	"título", "title", "heading", "subtitle", "subtítulo",
	"bullet point", "bullet", "punto", "item",
	"content", "contenido", "description", "descripción",
	"text", "texto", "nombre", "name", "fecha", "date", "autor", "author",
}

var defaultContentPatterns = []string{
	`\d{2,4}[-/]\d{2}[-/]\d{2,4}`,
	`\+?\d{1,3}[-.\s]?\d{3,}`,
	`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`,
	`https?://\S+`,
	`www\.\S+`,
	`©|®|™`,
	`(?i)\d{4}\s*(©|copyright)`,
}
