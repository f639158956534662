package vectorstore

// SeedDocument is one entry of the built-in demo corpus. The embeddings are
// fixed 5-dimensional vectors so search results are reproducible across runs.
type SeedDocument struct {
	ID        string
	Content   string
	Embedding []float32
	Metadata  map[string]any
}

// SeedCorpus returns the demo knowledge base. Five short documents are
// enough to make search results vary meaningfully with the query.
func SeedCorpus() []SeedDocument {
	return []SeedDocument{
		{
			ID:        "doc_1",
			Content:   "Artificial Intelligence (AI) is a branch of computer science that aims to create intelligent machines. It includes machine learning, deep learning, and neural networks.",
			Embedding: []float32{0.1, 0.2, 0.3, 0.4, 0.5},
			Metadata:  map[string]any{"source": "ai_handbook.pdf", "page": 1, "category": "technology"},
		},
		{
			ID:        "doc_2",
			Content:   "Machine learning is a subset of AI that enables computers to learn and improve from experience without being explicitly programmed. It uses algorithms to find patterns in data.",
			Embedding: []float32{0.2, 0.3, 0.4, 0.5, 0.6},
			Metadata:  map[string]any{"source": "ml_guide.pdf", "page": 5, "category": "technology"},
		},
		{
			ID:        "doc_3",
			Content:   "Python is a high-level programming language known for its simplicity and readability. It's widely used in data science, web development, and automation.",
			Embedding: []float32{0.3, 0.4, 0.5, 0.6, 0.7},
			Metadata:  map[string]any{"source": "python_tutorial.pdf", "page": 2, "category": "programming"},
		},
		{
			ID:        "doc_4",
			Content:   "Docker is a containerization platform that allows developers to package applications and their dependencies into lightweight, portable containers.",
			Embedding: []float32{0.4, 0.5, 0.6, 0.7, 0.8},
			Metadata:  map[string]any{"source": "docker_docs.pdf", "page": 1, "category": "devops"},
		},
		{
			ID:        "doc_5",
			Content:   "Kubernetes is an open-source container orchestration platform for automating deployment, scaling, and management of containerized applications.",
			Embedding: []float32{0.5, 0.6, 0.7, 0.8, 0.9},
			Metadata:  map[string]any{"source": "k8s_manual.pdf", "page": 3, "category": "devops"},
		},
	}
}
