package config

import "github.com/Jiejieojoyuyu/article-recommendation-project/internal/domain"

// DefaultDomains returns the built-in crawl catalog. Weights order the
// scheduler; max_papers caps how many records each domain may store. Recent
// year windows come first so the freshest literature lands before the
// backfill ranges.
func DefaultDomains() []DomainConfig {
	return []DomainConfig{
		{
			Name: "artificial intelligence",
			Keywords: []string{
				"artificial intelligence", "machine learning", "deep learning", "neural networks",
				"computer vision", "natural language processing", "reinforcement learning",
				"transformer", "BERT", "GPT", "CNN", "RNN", "LSTM", "attention mechanism",
			},
			Weight:    3.0,
			MaxPapers: 500000,
			YearRanges: []domain.YearRange{
				{From: 2015, To: 2024}, {From: 2010, To: 2014}, {From: 2005, To: 2009}, {From: 2000, To: 2004},
			},
		},
		{
			Name: "computer science",
			Keywords: []string{
				"computer science", "algorithms", "data structures", "software engineering",
				"distributed systems", "database", "operating systems", "computer networks",
				"cybersecurity", "blockchain", "cloud computing", "big data",
			},
			Weight:    2.5,
			MaxPapers: 400000,
			YearRanges: []domain.YearRange{
				{From: 2015, To: 2024}, {From: 2010, To: 2014}, {From: 2005, To: 2009}, {From: 2000, To: 2004},
			},
		},
		{
			Name: "electronics",
			Keywords: []string{
				"electronics", "signal processing", "telecommunications", "wireless communication",
				"digital signal processing", "embedded systems", "microelectronics", "circuit design",
				"antenna", "RF", "microwave", "optical communication",
			},
			Weight:    2.0,
			MaxPapers: 300000,
			YearRanges: []domain.YearRange{
				{From: 2015, To: 2024}, {From: 2010, To: 2014}, {From: 2005, To: 2009},
			},
		},
		{
			Name: "mathematics",
			Keywords: []string{
				"mathematics", "statistics", "probability", "linear algebra", "calculus",
				"optimization", "numerical analysis", "topology", "algebra", "geometry",
			},
			Weight:    1.5,
			MaxPapers: 250000,
			YearRanges: []domain.YearRange{
				{From: 2015, To: 2024}, {From: 2010, To: 2014}, {From: 2005, To: 2009},
			},
		},
		{
			Name: "physics",
			Keywords: []string{
				"physics", "quantum mechanics", "thermodynamics", "electromagnetism",
				"optics", "solid state physics", "particle physics", "astrophysics",
			},
			Weight:    1.5,
			MaxPapers: 200000,
			YearRanges: []domain.YearRange{
				{From: 2015, To: 2024}, {From: 2010, To: 2014}, {From: 2005, To: 2009},
			},
		},
		{
			Name: "biology",
			Keywords: []string{
				"biology", "genetics", "molecular biology", "cell biology", "biochemistry",
				"bioinformatics", "genomics", "proteomics", "synthetic biology",
			},
			Weight:    1.5,
			MaxPapers: 200000,
			YearRanges: []domain.YearRange{
				{From: 2015, To: 2024}, {From: 2010, To: 2014}, {From: 2005, To: 2009},
			},
		},
		{
			Name: "chemistry",
			Keywords: []string{
				"chemistry", "organic chemistry", "inorganic chemistry", "physical chemistry",
				"analytical chemistry", "materials chemistry", "catalysis", "polymer chemistry",
			},
			Weight:    1.5,
			MaxPapers: 150000,
			YearRanges: []domain.YearRange{
				{From: 2015, To: 2024}, {From: 2010, To: 2014}, {From: 2005, To: 2009},
			},
		},
		{
			Name: "medicine",
			Keywords: []string{
				"medicine", "medical research", "clinical trials", "pharmacology", "pathology",
				"immunology", "oncology", "cardiology", "neurology", "public health",
			},
			Weight:    1.5,
			MaxPapers: 200000,
			YearRanges: []domain.YearRange{
				{From: 2015, To: 2024}, {From: 2010, To: 2014}, {From: 2005, To: 2009},
			},
		},
		{
			Name: "literature",
			Keywords: []string{
				"literature", "literary criticism", "comparative literature", "creative writing",
				"poetry", "novel", "drama", "literary theory", "world literature",
			},
			Weight:    1.0,
			MaxPapers: 100000,
			YearRanges: []domain.YearRange{
				{From: 2010, To: 2024}, {From: 2005, To: 2009}, {From: 2000, To: 2004},
			},
		},
		{
			Name: "education",
			Keywords: []string{
				"education", "educational research", "pedagogy", "curriculum", "learning",
				"teaching methods", "educational psychology", "educational technology",
			},
			Weight:    1.0,
			MaxPapers: 100000,
			YearRanges: []domain.YearRange{
				{From: 2010, To: 2024}, {From: 2005, To: 2009}, {From: 2000, To: 2004},
			},
		},
		{
			Name: "linguistics",
			Keywords: []string{
				"linguistics", "language acquisition", "syntax", "semantics", "phonetics",
				"sociolinguistics", "psycholinguistics", "computational linguistics",
			},
			Weight:    1.0,
			MaxPapers: 80000,
			YearRanges: []domain.YearRange{
				{From: 2010, To: 2024}, {From: 2005, To: 2009}, {From: 2000, To: 2004},
			},
		},
		{
			Name: "philosophy",
			Keywords: []string{
				"philosophy", "ethics", "epistemology", "metaphysics", "logic",
				"political philosophy", "philosophy of mind", "philosophy of science",
			},
			Weight:    1.0,
			MaxPapers: 60000,
			YearRanges: []domain.YearRange{
				{From: 2010, To: 2024}, {From: 2005, To: 2009}, {From: 2000, To: 2004},
			},
		},
		{
			Name: "psychology",
			Keywords: []string{
				"psychology", "cognitive psychology", "social psychology", "developmental psychology",
				"clinical psychology", "behavioral psychology", "neuroscience",
			},
			Weight:    1.2,
			MaxPapers: 100000,
			YearRanges: []domain.YearRange{
				{From: 2010, To: 2024}, {From: 2005, To: 2009}, {From: 2000, To: 2004},
			},
		},
		{
			Name: "economics",
			Keywords: []string{
				"economics", "microeconomics", "macroeconomics", "econometrics", "financial economics",
				"behavioral economics", "development economics", "international economics",
			},
			Weight:    1.2,
			MaxPapers: 100000,
			YearRanges: []domain.YearRange{
				{From: 2010, To: 2024}, {From: 2005, To: 2009}, {From: 2000, To: 2004},
			},
		},
	}
}
