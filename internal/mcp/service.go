package mcp

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/biolit-mcp/litsearch-mcp/internal/circuit"
	"github.com/biolit-mcp/litsearch-mcp/internal/citetree"
	"github.com/biolit-mcp/litsearch-mcp/internal/config"
	"github.com/biolit-mcp/litsearch-mcp/internal/dispatch"
	"github.com/biolit-mcp/litsearch-mcp/internal/enhance"
	"github.com/biolit-mcp/litsearch-mcp/internal/enrich"
	"github.com/biolit-mcp/litsearch-mcp/internal/entity"
	"github.com/biolit-mcp/litsearch-mcp/internal/fulltext"
	"github.com/biolit-mcp/litsearch-mcp/internal/httpclient"
	"github.com/biolit-mcp/litsearch-mcp/internal/metrics"
	"github.com/biolit-mcp/litsearch-mcp/internal/pipeline"
	"github.com/biolit-mcp/litsearch-mcp/internal/providers"
	"github.com/biolit-mcp/litsearch-mcp/internal/query"
	"github.com/biolit-mcp/litsearch-mcp/internal/ratelimit"
	"github.com/biolit-mcp/litsearch-mcp/internal/relax"
)

// Service is the full dependency bundle every tool handler runs against:
// one of every component built elsewhere in this module, wired together
// before being handed to the HTTP mux. NewService is the single place
// that decides how providers share a rate limiter, breaker registry and
// HTTP client.
type Service struct {
	Config *config.Config

	Providers map[string]providers.Provider

	Dispatcher *dispatch.Dispatcher
	Resolver   *entity.Resolver
	Analyzer   *query.Analyzer
	Enhancer   *enhance.Enhancer
	Enricher   *enrich.Enricher
	RelaxCfg   relax.Config

	Store      *pipeline.Store
	Templates  *pipeline.TemplateRegistry
	Executor   *pipeline.Executor

	CiteTree *citetree.Builder
	Fulltext *fulltext.Chain

	Metrics *metrics.Registry
	Events  *EventHub
}

// NewService builds every component from cfg and wires them into a
// Service: shared clients first, then the components that embed them,
// then the components that depend on those.
func NewService(cfg *config.Config) *Service {
	httpClient := httpclient.New(httpclient.DefaultConfig())

	limiters := ratelimit.NewRegistry()
	breakers := circuit.NewRegistry(circuit.Config{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		RecoveryTimeout:  cfg.Breaker.RecoveryTimeout,
	})
	for key, pc := range cfg.Providers {
		limiters.Configure(key, ratelimit.Config{RatePerSec: pc.RateTokensSec, Burst: pc.RateBurst})
	}

	registry := buildProviders(cfg, httpClient, limiters, breakers)

	pubtator, _ := registry["pubtator"].(*providers.PubTator)
	var autocompleter entity.Autocompleter
	if pubtator != nil {
		autocompleter = pubtator
	}
	resolver := entity.New(autocompleter, entity.Config{TTL: cfg.EntityCache.TTL, MaxSize: cfg.EntityCache.MaxSize})

	icite, _ := registry["icite"].(*providers.ICite)
	var citationMetrics providers.Metrics
	if icite != nil {
		citationMetrics = icite
	}
	unpaywall, _ := registry["unpaywall"].(*providers.Unpaywall)
	var oaLocator enrich.OALocator
	if unpaywall != nil {
		oaLocator = unpaywall
	}
	enricher := enrich.New(citationMetrics, oaLocator)

	dispatcher := dispatch.New(registry, dispatch.Config{
		GlobalTimeout:   cfg.DispatchGlobalTimeout,
		ProviderTimeout: cfg.DispatchProviderTimeout,
	})

	store := pipeline.NewStore(cfg.PipelineStore.WorkspaceDir, cfg.PipelineStore.GlobalDir)
	templates := pipeline.NewTemplateRegistry()
	analyzer := query.New(resolver)
	enhancer := enhance.New(resolver)

	executor := &pipeline.Executor{
		Providers:  registry,
		Dispatcher: dispatcher,
		Analyzer:   analyzer,
		Enhancer:   enhancer,
		Enricher:   enricher,
		Templates:  templates,
	}

	relaxCfg := relax.DefaultConfig()
	relaxCfg.MinResults = cfg.RelaxMinResults

	pmcoa, _ := registry["pmcoa"].(*providers.PMCOA)
	var pdfLinker fulltext.PDFLinker
	if pmcoa != nil {
		pdfLinker = pmcoa
	}
	var oaChainLocator fulltext.OALocator
	if unpaywall != nil {
		oaChainLocator = unpaywall
	}

	return &Service{
		Config:     cfg,
		Providers:  registry,
		Dispatcher: dispatcher,
		Resolver:   resolver,
		Analyzer:   analyzer,
		Enhancer:   enhancer,
		Enricher:   enricher,
		RelaxCfg:   relaxCfg,
		Store:      store,
		Templates:  templates,
		Executor:   executor,
		CiteTree:   citetree.New(registry),
		Fulltext:   &fulltext.Chain{PMC: pdfLinker, Unpaywall: oaChainLocator, HTTPClient: httpClient},
		Metrics:    metrics.New(prometheus.DefaultRegisterer),
		Events:     NewEventHub(),
	}
}

// buildProviders constructs every adapter named in the roster, each
// sharing httpClient, limiters and breakers but owning its own
// providers.Base so per-provider retry counts stay independent.
func buildProviders(cfg *config.Config, httpClient *http.Client, limiters *ratelimit.Registry, breakers *circuit.Registry) map[string]providers.Provider {
	base := func(key string) providers.Base {
		return providers.Base{
			ProviderKey: key,
			HTTPClient:  httpClient,
			Limiter:     limiters,
			Breaker:     breakers,
			MaxRetries:  3,
		}
	}
	pc := func(key string) config.ProviderConfig { return cfg.Providers[key] }

	registry := map[string]providers.Provider{
		"pubmed":         providers.NewPubMed(base("pubmed"), pc("pubmed").BaseURL, pc("pubmed").APIKey),
		"europepmc":      providers.NewEuropePMC(base("europepmc"), pc("europepmc").BaseURL),
		"crossref":       providers.NewCrossref(base("crossref"), pc("crossref").BaseURL, pc("crossref").APIKey),
		"icite":          providers.NewICite(base("icite"), pc("icite").BaseURL),
		"unpaywall":      providers.NewUnpaywall(base("unpaywall"), pc("unpaywall").BaseURL, pc("unpaywall").APIKey),
		"pubtator":       providers.NewPubTator(base("pubtator"), pc("pubtator").BaseURL),
		"biorxiv":        providers.NewBioRxiv(base("biorxiv"), pc("biorxiv").BaseURL, "biorxiv"),
		"medrxiv":        providers.NewBioRxiv(base("medrxiv"), pc("biorxiv").BaseURL, "medrxiv"),
		"clinicaltrials": providers.NewClinicalTrials(base("clinicaltrials"), pc("clinicaltrials").BaseURL),
		"pmcoa":          providers.NewPMCOA(base("pmcoa"), pc("fulltext").BaseURL),
	}
	return registry
}
