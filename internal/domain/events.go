package domain

// EventType is the notification taxonomy.
type EventType string

const (
	EventMarginAlert         EventType = "margin_alert"
	EventPriceChange         EventType = "price_change"
	EventPriceAdjustment     EventType = "price_adjustment"
	EventInventoryOutOfStock EventType = "inventory_out_of_stock"
	EventInventoryRestock    EventType = "inventory_restock"
	EventPriceFetchFail      EventType = "price_fetch_fail"
	EventProductUnavailable  EventType = "product_unavailable"
)

// AllEventTypes lists every event the gateway can deliver.
var AllEventTypes = []EventType{
	EventMarginAlert,
	EventPriceChange,
	EventPriceAdjustment,
	EventInventoryOutOfStock,
	EventInventoryRestock,
	EventPriceFetchFail,
	EventProductUnavailable,
}

// Payload is the event body handed to notification destinations.
type Payload map[string]any
