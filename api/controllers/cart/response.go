package cart

type countResponse struct {
	Count int `json:"count"`
}
