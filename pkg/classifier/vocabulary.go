package classifier

// VocabularyVersion identifies DefaultVocabulary. Classification output is only
// stable for a fixed version.
const VocabularyVersion = "2024.1"

// Vocabulary is the closed keyword set the classifier matches against.
// Slice order is significant: extraction results follow it.
type Vocabulary struct {
	Version string

	Entities   []string
	Attributes []string

	BreedingCues       []string
	RecommendationCues []string
	EducationCues      []string

	TechnicalTerms []string
	NoviceTerms    []string
	NegationCues   []string

	// UseCases maps an attribute to the use-case label it implies.
	UseCases map[string]string
}

// DefaultVocabulary returns the built-in strain/effect vocabulary.
func DefaultVocabulary() *Vocabulary {
	return &Vocabulary{
		Version: VocabularyVersion,
		Entities: []string{
			"Blue Dream",
			"OG Kush",
			"Jack Herer",
			"Sour Diesel",
			"Girl Scout Cookies",
			"Granddaddy Purple",
			"Green Crack",
			"Pineapple Express",
			"Northern Lights",
			"White Widow",
			"Durban Poison",
			"Gorilla Glue",
			"Wedding Cake",
			"Gelato",
			"AK-47",
			"Trainwreck",
			"Super Lemon Haze",
			"Purple Haze",
			"Bubba Kush",
			"Strawberry Cough",
			"Harlequin",
			"ACDC",
			"Charlotte's Web",
			"Zkittlez",
			"Runtz",
		},
		Attributes: []string{
			"relaxing",
			"relaxed",
			"energetic",
			"energy",
			"focus",
			"creative",
			"happy",
			"euphoric",
			"uplifting",
			"sleep",
			"sleepy",
			"calm",
			"pain relief",
			"pain",
			"anxiety",
			"stress",
			"appetite",
			"citrus",
			"earthy",
			"sweet",
			"pine",
			"berry",
			"fruity",
			"spicy",
			"indica",
			"sativa",
			"hybrid",
			"cbd",
			"thc",
		},
		BreedingCues: []string{
			"cross", "crossing", "breed", "breeding", "pollinate", "pollen",
			"backcross", "phenotype hunt", "seeds", "genetics", "stabilize",
		},
		RecommendationCues: []string{
			"best", "recommend", "recommendation", "suggest", "which strain",
			"what strain", "good for", "should i try", "looking for",
		},
		EducationCues: []string{
			"what is", "what are", "how does", "explain", "difference between",
			"why", "learn", "meaning of", "tell me about",
		},
		TechnicalTerms: []string{
			"terpene", "terpenes", "cannabinoid", "cannabinoids", "phenotype",
			"genotype", "backcross", "f1", "f2", "trichome", "trichomes",
			"myrcene", "limonene", "caryophyllene", "linalool", "thca", "cbga",
			"landrace", "ipm", "vpd",
		},
		NoviceTerms: []string{
			"beginner", "first time", "new to", "never tried", "newbie",
			"novice", "just started",
		},
		NegationCues: []string{
			"don't like", "do not like", "dislike", "avoid", "not a fan of",
			"hate", "without", "no more",
		},
		UseCases: map[string]string{
			"sleep":       "sleep",
			"sleepy":      "sleep",
			"pain relief": "pain management",
			"pain":        "pain management",
			"anxiety":     "stress relief",
			"stress":      "stress relief",
			"calm":        "stress relief",
			"relaxing":    "stress relief",
			"relaxed":     "stress relief",
			"focus":       "daytime productivity",
			"energetic":   "daytime productivity",
			"energy":      "daytime productivity",
			"creative":    "creativity",
			"appetite":    "appetite",
		},
	}
}
