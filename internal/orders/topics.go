package orders

const (
	TopicOrderCreated   = "order.created"
	TopicOrderPaid      = "order.paid"
	TopicOrderCancelled = "order.cancelled"
)

var topicByEvent = map[string]string{
	EventOrderCreated:   TopicOrderCreated,
	EventOrderPaid:      TopicOrderPaid,
	EventOrderCancelled: TopicOrderCancelled,
}

// TopicFor returns the topic an event type is published to.
func TopicFor(eventType string) string { return topicByEvent[eventType] }

// StockTopics are the topics whose events change product quantities.
var StockTopics = []string{TopicOrderCreated, TopicOrderCancelled}

// Partition key = order_id, supaya semua event 1 order maintain urutan.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
