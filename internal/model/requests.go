package model

type Credentials struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type AssignRequest struct {
	MasterID int64 `json:"master_id"`
}

type OfferResponseRequest struct {
	MasterID int64 `json:"master_id"`
}
