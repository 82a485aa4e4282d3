package domain

import (
	"fmt"
	"strings"
)

// EmbedKind selects the similarity space of an index.
type EmbedKind int

const (
	EmbedDense EmbedKind = iota + 1
	EmbedSparse
	EmbedHybrid
)

func (k EmbedKind) String() string {
	switch k {
	case EmbedDense:
		return "dense"
	case EmbedSparse:
		return "sparse"
	case EmbedHybrid:
		return "hybrid"
	}
	return "unknown"
}

// Embedding providers.
const (
	ProviderOpenAI = "openai"
	ProviderJina   = "jina"
	ProviderVoyage = "voyage"
)

// Sparse backends.
const (
	BackendBM25          = "bm25"
	BackendElasticsearch = "elasticsearch"
)

// embeddingModels lists the models each dense provider accepts; the first
// entry is the default.
var embeddingModels = map[string][]string{
	ProviderOpenAI: {"text-embedding-3-small", "text-embedding-3-large"},
	ProviderJina:   {"jina-embeddings-v3"},
	ProviderVoyage: {"voyage-3", "voyage-3-large"},
}

// EmbedMethod is a parsed embed tag.
//
//	dense:<provider>[:<model>]
//	sparse[:bm25|elasticsearch]
//	hybrid:<provider>[:<model>]
type EmbedMethod struct {
	Kind     EmbedKind
	Provider string // dense and hybrid only
	Model    string // dense and hybrid only
	Backend  string // sparse only
}

func (m EmbedMethod) String() string {
	switch m.Kind {
	case EmbedSparse:
		return "sparse:" + m.Backend
	case EmbedDense, EmbedHybrid:
		return m.Kind.String() + ":" + m.Provider + ":" + m.Model
	}
	return ""
}

// ParseEmbedMethod parses an embed tag. Unknown kinds, providers or models
// return a *ConfigError.
func ParseEmbedMethod(tag string) (EmbedMethod, error) {
	parts := splitTag(tag)
	if len(parts) == 0 {
		return EmbedMethod{}, NewConfigError("embed_method", tag, "must not be empty")
	}
	if hasEmptySegment(parts) {
		return EmbedMethod{}, NewConfigError("embed_method", tag, "empty segment")
	}
	switch parts[0] {
	case "dense", "hybrid":
		kind := EmbedDense
		if parts[0] == "hybrid" {
			kind = EmbedHybrid
		}
		if len(parts) < 2 || len(parts) > 3 {
			return EmbedMethod{}, NewConfigError("embed_method", tag, "expected "+parts[0]+":<provider>[:<model>]")
		}
		provider, model := parts[1], ""
		if len(parts) == 3 {
			model = parts[2]
		}
		model, err := resolveEmbeddingModel(tag, provider, model)
		if err != nil {
			return EmbedMethod{}, err
		}
		return EmbedMethod{Kind: kind, Provider: provider, Model: model}, nil
	case "sparse":
		if len(parts) > 2 {
			return EmbedMethod{}, NewConfigError("embed_method", tag, "expected sparse[:bm25|elasticsearch]")
		}
		backend := BackendBM25
		if len(parts) == 2 {
			backend = parts[1]
		}
		if backend != BackendBM25 && backend != BackendElasticsearch {
			return EmbedMethod{}, NewConfigError("embed_method", tag, fmt.Sprintf("unknown sparse backend %q", backend))
		}
		return EmbedMethod{Kind: EmbedSparse, Backend: backend}, nil
	}
	return EmbedMethod{}, NewConfigError("embed_method", tag, fmt.Sprintf("unknown embed type %q", parts[0]))
}

func resolveEmbeddingModel(tag, provider, model string) (string, error) {
	models, ok := embeddingModels[provider]
	if !ok {
		return "", NewConfigError("embed_method", tag, fmt.Sprintf("unknown embedding provider %q", provider))
	}
	if model == "" {
		return models[0], nil
	}
	for _, m := range models {
		if m == model {
			return model, nil
		}
	}
	return "", NewConfigError("embed_method", tag,
		fmt.Sprintf("model %q is not supported by %s (supported: %s)", model, provider, strings.Join(models, ", ")))
}

// RewriteKind selects how a query is rewritten.
type RewriteKind int

const (
	RewriteExpand RewriteKind = iota + 1
	RewriteHyDE
)

func (k RewriteKind) String() string {
	switch k {
	case RewriteExpand:
		return "expand"
	case RewriteHyDE:
		return "hyde"
	}
	return "unknown"
}

// LLM providers.
const (
	LLMOpenAI    = "openai"
	LLMAnthropic = "anthropic"
)

var defaultLLMModels = map[string]string{
	LLMOpenAI:    "gpt-4.1",
	LLMAnthropic: "claude-sonnet-4-5",
}

// RewriteMethod is a parsed rewrite tag: <expand|hyde>:<provider>[:<model>].
type RewriteMethod struct {
	Kind     RewriteKind
	Provider string
	Model    string
}

func (m RewriteMethod) String() string {
	return m.Kind.String() + ":" + m.Provider + ":" + m.Model
}

// ParseRewriteMethod parses a rewrite tag. The empty tag means no rewriting
// and returns ok=false.
func ParseRewriteMethod(tag string) (m RewriteMethod, ok bool, err error) {
	parts := splitTag(tag)
	if len(parts) == 0 {
		return RewriteMethod{}, false, nil
	}
	if hasEmptySegment(parts) {
		return RewriteMethod{}, false, NewConfigError("rewrite_method", tag, "empty segment")
	}
	switch parts[0] {
	case "expand":
		m.Kind = RewriteExpand
	case "hyde":
		m.Kind = RewriteHyDE
	default:
		return RewriteMethod{}, false, NewConfigError("rewrite_method", tag, fmt.Sprintf("unknown rewrite type %q", parts[0]))
	}
	if len(parts) < 2 || len(parts) > 3 {
		return RewriteMethod{}, false, NewConfigError("rewrite_method", tag, "expected "+parts[0]+":<provider>[:<model>]")
	}
	m.Provider = parts[1]
	def, known := defaultLLMModels[m.Provider]
	if !known {
		return RewriteMethod{}, false, NewConfigError("rewrite_method", tag, fmt.Sprintf("unknown llm provider %q", m.Provider))
	}
	m.Model = def
	if len(parts) == 3 {
		m.Model = parts[2]
	}
	return m, true, nil
}

// RerankKind selects the reranking service.
type RerankKind int

const (
	RerankVoyage RerankKind = iota + 1
	RerankContextual
)

func (k RerankKind) String() string {
	switch k {
	case RerankVoyage:
		return "voyage"
	case RerankContextual:
		return "contextual"
	}
	return "unknown"
}

// RerankMethod is a parsed rerank tag: <voyage|contextual>[:<model>].
type RerankMethod struct {
	Kind  RerankKind
	Model string
}

func (m RerankMethod) String() string {
	return m.Kind.String() + ":" + m.Model
}

// ParseRerankMethod parses a rerank tag. The empty tag means no reranking
// and returns ok=false.
func ParseRerankMethod(tag string) (m RerankMethod, ok bool, err error) {
	parts := splitTag(tag)
	if len(parts) == 0 {
		return RerankMethod{}, false, nil
	}
	if hasEmptySegment(parts) {
		return RerankMethod{}, false, NewConfigError("rerank_method", tag, "empty segment")
	}
	if len(parts) > 2 {
		return RerankMethod{}, false, NewConfigError("rerank_method", tag, "expected <type>[:<model>]")
	}
	switch parts[0] {
	case "voyage":
		m = RerankMethod{Kind: RerankVoyage, Model: "rerank-2"}
	case "contextual":
		m = RerankMethod{Kind: RerankContextual, Model: "ctxl-rerank-v2-instruct-multilingual"}
	default:
		return RerankMethod{}, false, NewConfigError("rerank_method", tag, fmt.Sprintf("unknown rerank type %q", parts[0]))
	}
	if len(parts) == 2 {
		m.Model = parts[1]
	}
	return m, true, nil
}

// splitTag splits a tag on ':'.
func splitTag(tag string) []string {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return nil
	}
	parts := strings.Split(tag, ":")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func hasEmptySegment(parts []string) bool {
	for _, p := range parts {
		if p == "" {
			return true
		}
	}
	return false
}
