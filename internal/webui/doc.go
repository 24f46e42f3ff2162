// Package webui provides the single-page query interface.
//
// # Page
//
// GET / renders the title, description, a question input and the submit
// button. Credentials are resolved on every load; when any value is missing
// the configuration banner lists the missing key names and the button is
// disabled. Loading the page never runs a query.
//
// # Submitting
//
// POST /query runs the question through the assistant:
//
//   - With HX-Request set, only the result fragment is returned and htmx
//     swaps it into #result, showing the progress indicator meanwhile.
//   - Without it, the whole page is rendered with the result in place.
//
// The answer is shown under "Final Answer" with the remaining fields in a
// collapsed "See details" disclosure. Failures render as a banner.
//
// # CSRF
//
// The form carries a token that must match the qa_csrf cookie, or the
// X-CSRF-Token header for htmx requests.
package webui
