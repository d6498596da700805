package source

// Category is a fixed content bucket with its search query templates.
// Templates may contain a {lang} placeholder filled with one of the enabled
// display languages at query time.
type Category struct {
	ID      string
	Name    string
	Queries []string
}

// AllLanguages lists the display languages a query template can be built with
var AllLanguages = []string{"english", "hindi", "telugu", "tamil", "kannada", "malayalam"}

var categories = []Category{
	{
		ID:   "indian-kids",
		Name: "Kids Videos",
		Queries: []string{
			"{lang} kids rhymes shorts",
			"{lang} nursery rhymes for children shorts",
			"{lang} cartoon for kids shorts",
			"{lang} kids songs shorts",
			"kids fun videos shorts {lang}",
			"children entertainment {lang} shorts",
		},
	},
	{
		ID:   "devotional",
		Name: "Devotional",
		Queries: []string{
			"{lang} devotional songs for kids shorts",
			"bhajan for children {lang} shorts",
			"kids aarti {lang} shorts",
			"devotional stories for kids {lang} shorts",
			"{lang} kids prayer songs shorts",
			"god stories for children {lang} shorts",
		},
	},
	{
		ID:   "good-habits",
		Name: "Good Habits",
		Queries: []string{
			"good habits for kids {lang} shorts",
			"good manners children animation {lang} shorts",
			"kids moral stories {lang} shorts",
			"healthy habits for children {lang} shorts",
			"kids hygiene tips {lang} shorts",
			"children discipline {lang} shorts",
		},
	},
	{
		ID:   "kids-arts",
		Name: "Arts & Crafts",
		Queries: []string{
			"kids art and craft shorts",
			"easy drawing for kids shorts",
			"kids painting tutorial shorts",
			"paper craft for children shorts",
			"origami for kids shorts",
			"kids DIY craft ideas shorts",
		},
	},
	{
		ID:   "kids-knowledge",
		Name: "Knowledge",
		Queries: []string{
			"kids general knowledge {lang} shorts",
			"fun facts for children {lang} shorts",
			"learn alphabets numbers {lang} shorts",
			"kids educational videos {lang} shorts",
			"amazing facts for kids {lang} shorts",
			"GK quiz for kids {lang} shorts",
		},
	},
	{
		ID:   "nursery-rhymes",
		Name: "Nursery Rhymes",
		Queries: []string{
			"{lang} nursery rhymes shorts",
			"{lang} kids poems shorts",
			"{lang} baby songs shorts",
			"twinkle twinkle {lang} shorts",
			"{lang} rhymes for toddlers shorts",
			"abc song {lang} kids shorts",
		},
	},
	{
		ID:   "moral-stories",
		Name: "Moral Stories",
		Queries: []string{
			"{lang} moral stories for kids shorts",
			"{lang} panchatantra stories shorts",
			"{lang} bedtime stories kids shorts",
			"kids animated stories {lang} shorts",
			"{lang} fairy tales children shorts",
			"aesop fables {lang} kids shorts",
		},
	},
	{
		ID:   "math-learning",
		Name: "Math",
		Queries: []string{
			"kids math learning {lang} shorts",
			"counting for kids {lang} shorts",
			"math tricks kids shorts",
			"learn numbers {lang} children shorts",
			"fun math for kids shorts",
			"addition subtraction kids {lang} shorts",
		},
	},
	{
		ID:   "science-fun",
		Name: "Science",
		Queries: []string{
			"kids science experiments shorts",
			"fun science for kids {lang} shorts",
			"science facts children shorts",
			"how things work kids shorts",
			"easy science experiments shorts",
			"kids science {lang} shorts",
		},
	},
	{
		ID:   "yoga-kids",
		Name: "Yoga & Exercise",
		Queries: []string{
			"kids yoga shorts",
			"yoga for children shorts",
			"kids exercise shorts",
			"morning exercise kids shorts",
			"kids fitness fun shorts",
			"stretching for kids shorts",
		},
	},
	{
		ID:   "cooking-kids",
		Name: "Cooking",
		Queries: []string{
			"kids cooking {lang} shorts",
			"easy recipes for kids shorts",
			"kids kitchen fun shorts",
			"cooking with kids shorts",
			"healthy snacks kids shorts",
			"simple cooking children shorts",
		},
	},
	{
		ID:   "animal-facts",
		Name: "Animals",
		Queries: []string{
			"animal facts for kids shorts",
			"wild animals for children shorts",
			"kids animal videos {lang} shorts",
			"cute animals kids shorts",
			"learn about animals kids shorts",
			"zoo animals for children shorts",
		},
	},
	{
		ID:   "space-facts",
		Name: "Space",
		Queries: []string{
			"space facts for kids shorts",
			"planets for children shorts",
			"solar system kids shorts",
			"kids space exploration shorts",
			"astronomy for kids shorts",
			"universe facts children shorts",
		},
	},
}

// AllCategories returns every known category in a stable order
func AllCategories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// CategoryByID looks up a category by its identifier
func CategoryByID(id string) (Category, bool) {
	for _, c := range categories {
		if c.ID == id {
			return c, true
		}
	}
	return Category{}, false
}

// CategoryName returns the display name for a category id, falling back to
// the id itself when unknown
func CategoryName(id string) string {
	if c, ok := CategoryByID(id); ok {
		return c.Name
	}
	return id
}
