package domain

type Customer struct {
	ID    ID     `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email,omitempty"`
}

// Tenant is the shop a customer is ordering from.
type Tenant struct {
	ID    ID     `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
	UPIID string `json:"upi_id,omitempty"`
}

// Identity is the authenticated session held by the client. The zero value
// is an anonymous session.
type Identity struct {
	Token    string
	Customer *Customer
	Tenant   *Tenant
}

func (i Identity) IsAuthenticated() bool {
	return i.Token != ""
}
