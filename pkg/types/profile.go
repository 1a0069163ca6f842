package types

import "strings"

// Profile key names, the closed set a playbook may reference. Resolution to
// the user's actual values happens only at execution time.
const (
	KeyFirstName = "firstName"
	KeyLastName  = "lastName"
	KeyEmail     = "email"
	KeyPhone     = "phone"
	KeyAddress   = "address"
	KeyCity      = "city"
	KeyState     = "state"
	KeyZip       = "zip"
	KeyDOB       = "dob"
	KeyFullName  = "fullName"
)

// ProfileKeys lists every profile field name a playbook step may reference.
var ProfileKeys = []string{
	KeyFirstName, KeyLastName, KeyEmail, KeyPhone, KeyAddress,
	KeyCity, KeyState, KeyZip, KeyDOB, KeyFullName,
}

// KnownProfileKey reports whether key is in the fixed profile key set.
func KnownProfileKey(key string) bool {
	for _, k := range ProfileKeys {
		if key == k {
			return true
		}
	}
	return false
}

// PreviousAddress is one entry in the profile's prior-address history.
type PreviousAddress struct {
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
}

// Profile is a read-only snapshot of the user's personal data, handed to
// the engine at run start. The engine never persists it and never emits a
// resolved value in logs or events.
type Profile struct {
	FirstName         string            `json:"firstName"`
	LastName          string            `json:"lastName"`
	Email             string            `json:"email"`
	Phone             string            `json:"phone"`
	Address           string            `json:"address"`
	City              string            `json:"city"`
	State             string            `json:"state"`
	Zip               string            `json:"zip"`
	DOB               string            `json:"dob"`
	AlternateEmails   []string          `json:"alternateEmails,omitempty"`
	AlternatePhones   []string          `json:"alternatePhones,omitempty"`
	PreviousAddresses []PreviousAddress `json:"previousAddresses,omitempty"`
}

// Resolve maps a profile key to the user's value for it. The second return
// is false for keys outside the known set. fullName is derived from the
// first and last name fields.
func (p *Profile) Resolve(key string) (string, bool) {
	switch key {
	case KeyFirstName:
		return p.FirstName, true
	case KeyLastName:
		return p.LastName, true
	case KeyEmail:
		return p.Email, true
	case KeyPhone:
		return p.Phone, true
	case KeyAddress:
		return p.Address, true
	case KeyCity:
		return p.City, true
	case KeyState:
		return p.State, true
	case KeyZip:
		return p.Zip, true
	case KeyDOB:
		return p.DOB, true
	case KeyFullName:
		full := strings.TrimSpace(p.FirstName + " " + p.LastName)
		return full, full != ""
	}
	return "", false
}
