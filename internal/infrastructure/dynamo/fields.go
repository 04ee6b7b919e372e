package dynamo

// DynamoDB attribute names used in key and update expressions across repos.
const (
	fieldUserID          = "user_id"
	fieldHandle          = "handle"
	fieldEmail           = "email"
	fieldName            = "name"
	fieldPasswordHash    = "password_hash"
	fieldPersonalization = "personalization"
	fieldUpdatedAt       = "updated_at"
	fieldCreatedAt       = "created_at"
	fieldUniqueKey       = "unique_key"
	fieldSessionID       = "session_id"
	fieldTitle           = "title"
	fieldMessages        = "messages"
)

const (
	indexHandle = "handle-index"
	indexEmail  = "email-index"
)
