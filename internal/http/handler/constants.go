package handler

const (
	contentTypeJSON = "application/json"

	paramID     = "id"
	queryFilter = "q"
	queryLimit  = "limit"
	queryOffset = "offset"

	statusOK          = "ok"
	statusUnavailable = "unavailable"

	msgContentTypeJSONRequired = "content type must be application/json"
	msgInvalidRequestBody      = "invalid request body"
	msgInvalidIdentityID       = "invalid identity id"
	msgInvalidPagination       = "limit and offset must be non-negative integers"
	msgEmptyUpdate             = "at least one of enabled or role is required"
	msgPasswordProcessFail     = "failed to process password"
	msgNoPrincipal             = "authentication required"
)
