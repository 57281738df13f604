package logg

const (
	Layer     = "layer"
	Operation = "op"
	TaskID    = "task_id"
	Provider  = "provider"
	Role      = "role"
	Strategy  = "strategy"
	Selector  = "selector"
	URL       = "url"
	Action    = "action"
)
