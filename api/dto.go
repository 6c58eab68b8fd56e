/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Leave requests and balances render through their own JSON marshalers in
  the timeoff package (the stored shape is the API shape). This file holds
  the few wrappers that exist only at the HTTP edge.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

SEE ALSO:
  - handlers.go: Uses these types
  - factory/request.go: parses request bodies for the ledger
*/
package api

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest is the body of POST /scenarios/load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

// HealthDTO is the body of GET /healthz.
type HealthDTO struct {
	Status   string `json:"status"`
	Store    string `json:"store"`
	Scenario string `json:"scenario,omitempty"`
}
