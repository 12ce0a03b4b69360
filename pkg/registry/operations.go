package registry

// operations is the static metadata table. Every operation Steward exposes
// is declared here; nothing is registered dynamically.
var operations = []Operation{
	{
		Name:        "customers.search",
		Description: "Search the caller's customers by name, email, or phone",
		Scope:       "core.read",
		Effect:      EffectNone,
		Idempotent:  true,
		ParamSchema: `{
			"type": "object",
			"properties": {
				"query":  {"type": "string"},
				"limit":  {"type": "integer", "minimum": 1, "maximum": 100},
				"offset": {"type": "integer", "minimum": 0}
			},
			"additionalProperties": false
		}`,
	},
	{
		Name:        "customers.get",
		Description: "Fetch one customer by id",
		Scope:       "core.read",
		Effect:      EffectNone,
		Idempotent:  true,
		ParamSchema: `{
			"type": "object",
			"properties": {"id": {"type": "string", "minLength": 1}},
			"required": ["id"],
			"additionalProperties": false
		}`,
	},
	{
		Name:        "customers.create",
		Description: "Create a customer record",
		Scope:       "core.write",
		Effect:      EffectWrite,
		Idempotent:  true,
		ParamSchema: `{
			"type": "object",
			"properties": {
				"name":            {"type": "string", "minLength": 1},
				"email":           {"type": "string"},
				"phone":           {"type": "string"},
				"idempotency_key": {"type": "string"}
			},
			"required": ["name"],
			"additionalProperties": false
		}`,
	},
	{
		Name:        "workorders.search",
		Description: "Search the caller's work orders",
		Scope:       "core.read",
		Effect:      EffectNone,
		Idempotent:  true,
		ParamSchema: `{
			"type": "object",
			"properties": {
				"query":       {"type": "string"},
				"customer_id": {"type": "string"},
				"limit":       {"type": "integer", "minimum": 1, "maximum": 100},
				"offset":      {"type": "integer", "minimum": 0}
			},
			"additionalProperties": false
		}`,
	},
	{
		Name:        "workorders.get",
		Description: "Fetch one work order by id",
		Scope:       "core.read",
		Effect:      EffectNone,
		Idempotent:  true,
		ParamSchema: `{
			"type": "object",
			"properties": {"id": {"type": "string", "minLength": 1}},
			"required": ["id"],
			"additionalProperties": false
		}`,
	},
	{
		Name:        "workorders.create",
		Description: "Create a work order for a customer",
		Scope:       "core.write",
		Effect:      EffectWrite,
		Idempotent:  true,
		ParamSchema: `{
			"type": "object",
			"properties": {
				"customer_id":     {"type": "string", "minLength": 1},
				"title":           {"type": "string", "minLength": 1},
				"scheduled_for":   {"type": "string"},
				"idempotency_key": {"type": "string"}
			},
			"required": ["customer_id", "title"],
			"additionalProperties": false
		}`,
	},
	{
		Name:        "quotes.search",
		Description: "Search the caller's quotes",
		Scope:       "core.read",
		Effect:      EffectNone,
		Idempotent:  true,
		ParamSchema: `{
			"type": "object",
			"properties": {
				"query":       {"type": "string"},
				"customer_id": {"type": "string"},
				"limit":       {"type": "integer", "minimum": 1, "maximum": 100},
				"offset":      {"type": "integer", "minimum": 0}
			},
			"additionalProperties": false
		}`,
	},
	{
		Name:        "quotes.get",
		Description: "Fetch one quote by id",
		Scope:       "core.read",
		Effect:      EffectNone,
		Idempotent:  true,
		ParamSchema: `{
			"type": "object",
			"properties": {"id": {"type": "string", "minLength": 1}},
			"required": ["id"],
			"additionalProperties": false
		}`,
	},
	{
		Name:        "quotes.create",
		Description: "Create a quote for a customer",
		Scope:       "quotes.write",
		Effect:      EffectWrite,
		Idempotent:  true,
		ParamSchema: `{
			"type": "object",
			"properties": {
				"customer_id":     {"type": "string", "minLength": 1},
				"title":           {"type": "string", "minLength": 1},
				"value":           {"type": "integer", "minimum": 0},
				"idempotency_key": {"type": "string"}
			},
			"required": ["customer_id", "title", "value"],
			"additionalProperties": false
		}`,
	},
	{
		Name:        "charges.search",
		Description: "Search the caller's charges",
		Scope:       "core.read",
		Effect:      EffectNone,
		Idempotent:  true,
		ParamSchema: `{
			"type": "object",
			"properties": {
				"customer_id": {"type": "string"},
				"limit":       {"type": "integer", "minimum": 1, "maximum": 100},
				"offset":      {"type": "integer", "minimum": 0}
			},
			"additionalProperties": false
		}`,
	},
	{
		Name:        "charges.get",
		Description: "Fetch one charge by id",
		Scope:       "core.read",
		Effect:      EffectNone,
		Idempotent:  true,
		ParamSchema: `{
			"type": "object",
			"properties": {"id": {"type": "string", "minLength": 1}},
			"required": ["id"],
			"additionalProperties": false
		}`,
	},
	{
		Name:        "billing.previewCharge",
		Description: "Preview a charge before committing it",
		Scope:       "billing.write",
		Effect:      EffectWrite,
		Idempotent:  true,
		ParamSchema: `{
			"type": "object",
			"properties": {
				"customer_id": {"type": "string", "minLength": 1},
				"value":       {"type": "integer"},
				"method":      {"type": "string", "enum": ["invoice", "card", "direct_debit"]},
				"due_date":    {"type": "string"},
				"description": {"type": "string"}
			},
			"required": ["customer_id", "value", "method"],
			"additionalProperties": false
		}`,
	},
	{
		Name:        "billing.createCharge",
		Description: "Commit a previously previewed charge",
		Scope:       "billing.write",
		Effect:      EffectWrite,
		Idempotent:  true,
		ParamSchema: `{
			"type": "object",
			"properties": {
				"preview_id":      {"type": "string", "minLength": 1},
				"idempotency_key": {"type": "string"}
			},
			"required": ["preview_id"],
			"additionalProperties": false
		}`,
	},
}
