// Package domain holds the entities shared by the monitoring and pricing pipeline.
package domain

// Source identifies which extractor handles a product page. It is resolved once
// when a product is registered and stored with the product.
type Source string

// Known retailers plus the generic fallback.
const (
	SourceSSG        Source = "ssg"
	SourceGmarket    Source = "gmarket"
	SourceAuction    Source = "auction"
	SourceElevenst   Source = "11st"
	SourceLotteOn    Source = "lotteon"
	SourceCoupang    Source = "coupang"
	SourceSmartStore Source = "smartstore"
	SourceGeneric    Source = "generic"
)

// FetchMode names an HTML transport.
type FetchMode string

const (
	FetchModeDirect  FetchMode = "direct"
	FetchModeBrowser FetchMode = "browser"
)
