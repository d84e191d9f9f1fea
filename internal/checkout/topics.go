package checkout

const (
	TopicTransactionAdmitted = "transaction.admitted"
	TopicTransactionPaid     = "transaction.paid"
	TopicTransactionExpired  = "transaction.expired"
)

// Partition key = transaction id so every event of one transaction stays ordered.
func PartitionKey(transactionID string) []byte { return []byte(transactionID) }
