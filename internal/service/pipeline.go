package service

import (
	"github.com/jharjadi/wikigpt/core-api-go/internal/config"
	"github.com/jharjadi/wikigpt/core-api-go/internal/wiki"
)

// Pipeline bundles the services built from one Config.
type Pipeline struct {
	Resolver *Resolver
	LLM      *LLMService
	Chat     *ChatService
}

// NewPipeline wires the Wikipedia client, resolver, completion gateway and
// chat service from cfg.
func NewPipeline(cfg *config.Config, tokens TokenCounter) *Pipeline {
	wikiClient := wiki.NewClient(
		cfg.WikiEndpoint(),
		cfg.WikiUserAgent,
		cfg.WikiExtractFormat,
		cfg.WikiTimeout(),
	)
	search := wiki.NewSearchClient(wikiClient, cfg.MaxWikiResults)
	fetcher := wiki.NewContentFetcher(
		wikiClient,
		cfg.MaxWikiResults,
		cfg.WikiContentMaxLength,
		cfg.WikiFetchConcurrency,
	)
	resolver := NewResolver(search, fetcher, cfg.MaxWikiResults)

	llm := NewLLMService(LLMConfig{
		APIKey:      cfg.MistralAPIKey,
		BaseURL:     cfg.CompletionBaseURL,
		Model:       cfg.ModelID,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		Timeout:     cfg.CompletionTimeout(),
		MaxRetries:  cfg.CompletionMaxRetries,
	})

	return &Pipeline{
		Resolver: resolver,
		LLM:      llm,
		Chat:     NewChatService(resolver, llm, tokens, cfg.AnswerFormat == config.AnswerHTML),
	}
}
