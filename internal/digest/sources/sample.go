package sources

import (
	"context"
	"time"
)

// SampleName is the configuration name of the sample source.
const SampleName = "sample"

type sampleEntry struct {
	journal, title, link, abstract string
}

var sampleEntries = []sampleEntry{
	{"Nature Machine Intelligence", "Deep Learning Approaches for Early Detection of Language Disorders in Children",
		"https://www.nature.com/articles/s42256-023-00687-5",
		"A deep learning framework analyses spontaneous speech recordings to flag early signs of developmental language disorder, reaching high sensitivity across age groups."},
	{"Medical Image Analysis", "AI-based Medical Imaging for Brain Tumor Segmentation and Classification",
		"https://www.sciencedirect.com/science/article/pii/S1361841523001234",
		"A multi-scale convolutional network segments and classifies brain tumours in MRI, outperforming existing methods on public benchmarks."},
	{"IEEE Journal of Biomedical and Health Informatics", "Machine Learning Models for Predicting Developmental Language Delay",
		"https://ieeexplore.ieee.org/document/10123456",
		"Ensemble models trained on early developmental milestones predict later language delay and identify the most informative screening items."},
	{"Artificial Intelligence in Medicine", "Natural Language Processing for Clinical Text Analysis in Pediatric Care",
		"https://www.sciencedirect.com/science/article/pii/S0933365723001567",
		"Clinical notes from paediatric visits are mined with transformer models to surface communication concerns that are often under-documented."},
	{"Psychiatry Research", "Digital Phenotyping and Machine Learning in Autism Spectrum Disorder Diagnosis",
		"https://www.sciencedirect.com/science/article/pii/S0165178123007890",
		"Passive smartphone and wearable signals are combined into digital phenotypes that support earlier autism spectrum disorder assessment."},
	{"Cell Reports Medicine", "Multi-modal AI Integration for Personalized Medicine in Neurodevelopmental Disorders",
		"https://www.cell.com/cell-reports-medicine/fulltext/S2666-3791(23)00345-6",
		"Genomic, imaging and behavioural data are integrated to stratify children with neurodevelopmental disorders for personalised intervention."},
	{"Journal of Speech, Language, and Hearing Research", "Acoustic Analysis and Machine Learning for Speech Sound Disorder Detection",
		"https://academy.pubs.asha.org/doi/10.1044/2023_JSLHR-23-00123",
		"Acoustic features extracted from word productions allow classifiers to separate speech sound disorders from typical development."},
	{"Language, Speech, and Hearing Services in Schools", "Technology-assisted Language Intervention for Children with Communication Disorders",
		"https://academy.pubs.asha.org/doi/10.1044/2023_LSHSS-23-00089",
		"A school-based trial evaluates tablet-assisted language intervention and reports gains in vocabulary and narrative skills."},
	{"Developmental Psychology", "Longitudinal Study of Language Development in Bilingual Children",
		"https://www.apa.org/pubs/journals/dev/issues/dev6002",
		"Bilingual children followed from age two to six show distinct growth trajectories in each language shaped by home language exposure."},
	{"International Journal of Language & Communication Disorders", "Cross-linguistic Analysis of Phonological Development in Multilingual Children",
		"https://onlinelibrary.wiley.com/doi/10.1111/1460-6984.13044",
		"Phonological acquisition is compared across several languages to separate universal patterns from language-specific ones in multilingual children."},
}

// SampleSource returns canned articles dated today. It exists for demos and
// self-tests and is only used when explicitly enabled.
type SampleSource struct {
	now func() time.Time
}

// NewSampleSource creates a sample source. A nil clock means time.Now.
func NewSampleSource(now func() time.Time) *SampleSource {
	if now == nil {
		now = time.Now
	}
	return &SampleSource{now: now}
}

func (s *SampleSource) Name() string { return SampleName }

func (s *SampleSource) Fetch(ctx context.Context) ([]Article, error) {
	return SampleArticles(s.now()), nil
}

// SampleArticles returns the canned article set dated at now.
func SampleArticles(now time.Time) []Article {
	today := Today(now)
	out := make([]Article, 0, len(sampleEntries))
	for _, e := range sampleEntries {
		if art, ok := NewArticle(e.title, e.abstract, e.link, today, e.journal, ProviderWeb, now); ok {
			out = append(out, art)
		}
	}
	return out
}
