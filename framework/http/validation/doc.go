// Package validation provides Laravel-compatible input validation.
//
// # Overview
//
// The validation package mirrors Laravel's Validator facade and its rule syntax.
// Rules are expressed as pipe-separated strings on a map of field names.
//
// # Basic Usage
//
//	v := validation.Make(map[string]string{
//	    "ip":          r.URL.Query().Get("ip"),
//	    "status_code": r.URL.Query().Get("status_code"),
//	    "start":       r.URL.Query().Get("start"),
//	}, validation.Rules{
//	    "ip":          "nullable|ip",
//	    "status_code": "nullable|integer|gte:100|lte:599",
//	    "start":       "nullable|date",
//	})
//
//	if v.Fails() {
//	    // v.Errors().Fields() lists the rejected fields
//	}
//	criteria := v.Valid() // only the fields that passed
//
// Rules for a field stop at the first failure, so each field carries at
// most one message.
//
// # Available Rules
//
// String rules:
//   - required: field must be present and non-empty
//   - string  : passes (all Go form values are strings)
//   - min:n   : minimum n UTF-8 characters
//   - max:n   : maximum n UTF-8 characters
//   - size:n  : exactly n UTF-8 characters
//   - between:min,max: length between min and max (inclusive)
//   - alpha   : letters only [a-zA-Z]
//   - alpha_num: letters and numbers [a-zA-Z0-9]
//   - alpha_dash: letters, numbers, dashes, underscores
//   - regex:pattern: must match regexp pattern
//
// Format rules:
//   - email: valid RFC 5322 email address
//   - url  : must start with http:// or https://
//   - ip   : IPv4 or IPv6 address
//   - date : RFC 3339, 2006-01-02T15:04, 2006-01-02 15:04, 2006-01-02 or unix seconds (see ParseDate)
//
// Numeric rules:
//   - numeric: parseable as float64
//   - integer: parseable as int
//   - gt:n   : greater than n
//   - gte:n  : greater than or equal to n
//   - lt:n   : less than n
//   - lte:n  : less than or equal to n
//
// Comparison rules:
//   - confirmed      : field_confirmation must match field
//   - same:other     : must equal data[other]
//   - different:other: must not equal data[other]
//
// Type rules:
//   - boolean: true/false/1/0/yes/no (case-insensitive)
//   - in:a,b,c    : value must be in the comma-separated list
//   - not_in:a,b,c: value must NOT be in the comma-separated list
//
// Control rules:
//   - nullable : allows empty/missing values; stops further rule processing
//   - sometimes: same as nullable; absent and empty fields are alike here
//
// # Error Bag
//
// Errors are stored in a MessageBag that serialises to the same JSON structure
// as Laravel's validation errors:
//
//	{
//	  "errors": {
//	    "email": ["The email field is required.", "The email must be a valid email address."],
//	    "age":   ["The age must be greater than or equal to 18."]
//	  }
//	}
package validation