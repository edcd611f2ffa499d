// Package config loads expectation files.
//
// An expectation file lists request/response pairs in YAML or JSON:
//
//	version: "1.0"
//	expectations:
//	  - request:
//	      method: GET
//	      path: /users/1
//	    response:
//	      status: 200
//	      contentType: application/json
//	      body: '{"id":1}'
//	  - request:
//	      method: POST
//	      path: /items
//	      contentType: application/json
//	      body: '{"n":1}'
//	    response:
//	      status: 201
//
// An omitted response body means "no body"; body: "" is an empty body.
// Files are validated against an embedded JSON Schema (see Schema) before
// they are decoded, and LoadGlob accepts ** patterns.
//
//	f, err := config.LoadGlob("testdata/**/*.yaml")
//	if err != nil {
//	    return err
//	}
//	p := expect.NewProvider()
//	if err := f.Apply(p); err != nil {
//	    return err
//	}
package config
