package sources

// Default query terms for the developmental language disorder topic.
var (
	DefaultArxivTerms = []string{
		"developmental language disorder",
		"child language impairment",
		"speech language pathology children",
		"language development disorder",
		"specific language impairment",
		"childhood apraxia of speech",
		"pediatric communication disorders",
		"language delay children",
		"speech therapy children",
		"bilingual language disorders",
		"language disorder children",
	}

	DefaultPubMedTerms = []string{
		"developmental language disorder children",
		"specific language impairment",
		"child language impairment",
		"pediatric speech disorders",
		"language delay children",
		"childhood apraxia of speech",
		"bilingual language disorders children",
		"speech therapy pediatric",
		"communication disorders children",
		"language disorder children",
	}

	DefaultCrossrefTerms = []string{
		"developmental language disorder",
		"child language impairment",
		"speech therapy children",
		"pediatric communication disorders",
		"language delay children",
		"specific language impairment",
		"bilingual language disorders",
		"childhood apraxia of speech",
		"speech language pathology",
		"language disorder children",
	}
)

// DefaultJournals returns the journal listing pages crawled by default.
func DefaultJournals() []Journal {
	return []Journal{
		{Name: "Nature Machine Intelligence", URL: "https://www.nature.com/natmachintell/", Type: "nature"},
		{Name: "Medical Image Analysis", URL: "https://www.sciencedirect.com/journal/medical-image-analysis", Type: "sciencedirect"},
		{Name: "IEEE Journal of Biomedical and Health Informatics", URL: "https://ieeexplore.ieee.org/xpl/RecentIssue.jsp?punumber=6260354", Type: "ieee"},
		{Name: "Artificial Intelligence in Medicine", URL: "https://www.sciencedirect.com/journal/artificial-intelligence-in-medicine", Type: "sciencedirect"},
		{Name: "Psychiatry Research", URL: "https://www.sciencedirect.com/journal/psychiatry-research", Type: "sciencedirect"},
		{Name: "Cell Reports Medicine", URL: "https://www.cell.com/cell-reports-medicine", Type: "cell"},
		{Name: "Journal of Speech, Language, and Hearing Research", URL: "https://academy.pubs.asha.org/journal/jslhr", Type: "asha"},
		{Name: "Language, Speech, and Hearing Services in Schools", URL: "https://academy.pubs.asha.org/journal/lshss", Type: "asha"},
		{Name: "Developmental Psychology", URL: "https://www.apa.org/pubs/journals/dev", Type: "apa"},
		{Name: "International Journal of Language & Communication Disorders", URL: "https://onlinelibrary.wiley.com/journal/14606984", Type: "wiley"},
	}
}
