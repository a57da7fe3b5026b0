package dto

import "strings"

// ClerkEmailAddress is one entry of a Clerk user's email_addresses
type ClerkEmailAddress struct {
	ID           string `json:"id"`
	EmailAddress string `json:"email_address"`
}

// ClerkUser is the data of clerk/user.* events
type ClerkUser struct {
	ID                    string              `json:"id"`
	FirstName             string              `json:"first_name"`
	LastName              string              `json:"last_name"`
	ImageURL              string              `json:"image_url"`
	PrimaryEmailAddressID string              `json:"primary_email_address_id"`
	EmailAddresses        []ClerkEmailAddress `json:"email_addresses"`
}

// PrimaryEmail prefers the flagged primary address, then the first one
func (u ClerkUser) PrimaryEmail() string {
	for _, e := range u.EmailAddresses {
		if u.PrimaryEmailAddressID != "" && e.ID == u.PrimaryEmailAddressID {
			return e.EmailAddress
		}
	}
	if len(u.EmailAddresses) > 0 {
		return u.EmailAddresses[0].EmailAddress
	}
	return ""
}

// FullName joins first and last name the way the profile is displayed
func (u ClerkUser) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// ClerkDeleted is the data of clerk/*.deleted events
type ClerkDeleted struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// ClerkOrganization is the data of clerk/organization.* events
type ClerkOrganization struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	ImageURL  string `json:"image_url"`
	CreatedBy string `json:"created_by"`
}

// ClerkInvitation is the data of clerk/organizationInvitation.accepted
type ClerkInvitation struct {
	ID             string `json:"id"`
	EmailAddress   string `json:"email_address"`
	OrganizationID string `json:"organization_id"`
	RoleName       string `json:"role_name"`
	Role           string `json:"role"`
	UserID         string `json:"user_id"`
}

// RoleValue returns role_name, falling back to role
func (i ClerkInvitation) RoleValue() string {
	if i.RoleName != "" {
		return i.RoleName
	}
	return i.Role
}
