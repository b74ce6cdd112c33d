// Package phases is the catalogue of planning phases and the output contract
// each phase must satisfy. Contracts are JSON Schema (draft 2020-12) documents
// embedded in the binary and compiled once into an immutable Registry.
package phases

// Canonical phase identifiers, in pipeline order.
const (
	Intake           = "intake"
	Opportunity      = "opportunity"
	CustomerIntel    = "customer-intel"
	MarketResearch   = "market-research"
	CompetitiveIntel = "competitive-intel"
	BusinessModel    = "business-model"
	ProductStrategy  = "product-strategy"
	BrandPositioning = "brand-positioning"
	GTMStrategy      = "gtm-strategy"
	ContentStrategy  = "content-strategy"
	TechArchitecture = "tech-architecture"
	FinancialModel   = "financial-model"
	RiskAssessment   = "risk-assessment"
	LegalCompliance  = "legal-compliance"
	OperationsPlan   = "operations-plan"
	Reconciliation   = "reconciliation"
	Synthesis        = "synthesis"
)

type definition struct {
	id              string
	version         string
	evidenceBearing bool
	aliases         []string
}

// catalogue lists every phase the gate knows about. Order is pipeline order.
var catalogue = []definition{
	{id: Intake, version: "1.0.0", aliases: []string{"idea-intake", "idea"}},
	{id: Opportunity, version: "2.1.0", aliases: []string{"opportunity-discovery", "opportunities"}},
	{id: CustomerIntel, version: "1.0.0", aliases: []string{"customer-intelligence", "customer-discovery", "customer-research", "customers"}},
	{id: MarketResearch, version: "1.2.0", evidenceBearing: true, aliases: []string{"market", "market-analysis"}},
	{id: CompetitiveIntel, version: "1.1.0", evidenceBearing: true, aliases: []string{"competitive-intelligence", "competitor-analysis", "competitors", "competition"}},
	{id: BusinessModel, version: "1.0.0", aliases: []string{"business-model-canvas", "revenue-model"}},
	{id: ProductStrategy, version: "1.0.0", aliases: []string{"product", "product-roadmap"}},
	{id: BrandPositioning, version: "1.0.0", aliases: []string{"brand", "positioning"}},
	{id: GTMStrategy, version: "1.0.0", aliases: []string{"go-to-market", "gtm", "go-to-market-strategy"}},
	{id: ContentStrategy, version: "1.0.0", aliases: []string{"content", "content-plan"}},
	{id: TechArchitecture, version: "1.0.0", aliases: []string{"technical-architecture", "tech-arch", "architecture", "tech"}},
	{id: FinancialModel, version: "1.0.0", aliases: []string{"financials", "financial-projections", "finance"}},
	{id: RiskAssessment, version: "1.0.0", aliases: []string{"risks", "risk-analysis"}},
	{id: LegalCompliance, version: "1.0.0", aliases: []string{"legal", "compliance"}},
	{id: OperationsPlan, version: "1.0.0", aliases: []string{"operations", "ops-plan", "ops"}},
	{id: Reconciliation, version: "1.0.0", aliases: []string{"reconcile", "conflict-resolution", "cross-phase-reconciliation"}},
	{id: Synthesis, version: "1.0.0", aliases: []string{"executive-synthesis", "executive-summary", "summary"}},
}
