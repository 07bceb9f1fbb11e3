package inventory

import (
	"net/mail"
	"strings"
	"unicode/utf8"
)

const maxCompanyNameLength = 255

// AddressInput carries optional address fields. Nil means not provided.
type AddressInput struct {
	StreetAddress1 *string
	StreetAddress2 *string
	City           *string
	CityArea       *string
	PostalCode     *string
	Country        *string
	CountryArea    *string
	Phone          *string
}

// WarehouseInput carries create or update fields. Nil means not provided.
type WarehouseInput struct {
	Name        *string
	CompanyName *string
	Email       *string
	Address     *AddressInput
}

// Normalize validates the input and returns the column values to write.
// On create every column is returned, defaulting to empty strings; on update
// only provided fields are.
func (in WarehouseInput) Normalize(create bool) (map[string]interface{}, []*FieldError) {
	cols := make(map[string]interface{})
	var errs []*FieldError

	switch {
	case in.Name != nil && strings.TrimSpace(*in.Name) != "":
		cols["name"] = strings.TrimSpace(*in.Name)
	case in.Name != nil || create:
		errs = append(errs, &FieldError{Field: "name", Message: "This field cannot be blank.", Code: CodeRequired})
	}

	if in.CompanyName != nil {
		v := strings.TrimSpace(*in.CompanyName)
		if utf8.RuneCountInString(v) > maxCompanyNameLength {
			errs = append(errs, &FieldError{Field: "companyName", Message: "Ensure this value has at most 255 characters.", Code: CodeInvalid})
		} else {
			cols["company_name"] = v
		}
	} else if create {
		cols["company_name"] = ""
	}

	if in.Email != nil {
		v := strings.TrimSpace(*in.Email)
		if v != "" && !validEmail(v) {
			errs = append(errs, &FieldError{Field: "email", Message: "Enter a valid email address.", Code: CodeInvalid})
		} else {
			cols["email"] = strings.ToLower(v)
		}
	} else if create {
		cols["email"] = ""
	}

	addr := in.Address
	if addr == nil {
		addr = &AddressInput{}
	}
	if in.Address != nil || create {
		setString(cols, "street_address_1", addr.StreetAddress1, create)
		setString(cols, "street_address_2", addr.StreetAddress2, create)
		setString(cols, "city", addr.City, create)
		setString(cols, "city_area", addr.CityArea, create)
		setString(cols, "postal_code", addr.PostalCode, create)
		setString(cols, "country_area", addr.CountryArea, create)
		setString(cols, "phone", addr.Phone, create)
		if addr.Country != nil {
			country := strings.ToUpper(strings.TrimSpace(*addr.Country))
			if country != "" && !validCountryCode(country) {
				errs = append(errs, &FieldError{Field: "country", Message: "Invalid country code.", Code: CodeInvalid})
			} else {
				cols["country"] = country
			}
		} else if create {
			cols["country"] = ""
		}
	}

	if !create && len(cols) == 0 && len(errs) == 0 {
		errs = append(errs, &FieldError{Message: "No fields to update.", Code: CodeInvalid})
	}
	return cols, errs
}

func setString(cols map[string]interface{}, column string, value *string, create bool) {
	switch {
	case value != nil:
		cols[column] = strings.TrimSpace(*value)
	case create:
		cols[column] = ""
	}
}

func validEmail(v string) bool {
	addr, err := mail.ParseAddress(v)
	return err == nil && addr.Address == v
}

func validCountryCode(v string) bool {
	if len(v) != 2 {
		return false
	}
	for _, r := range v {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
