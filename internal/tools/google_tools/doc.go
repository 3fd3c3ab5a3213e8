// Package google_tools provides MCP tools for Google OAuth authorization.
//
// The calendar tools need a token, and an MCP server cannot open a browser
// on the user's behalf. These tools let the assistant walk the user through
// the copy-the-code flow:
//  1. Call google_auth_status to see what is missing
//  2. Call google_get_auth_url and show the URL to the user
//  3. The user authorizes and copies the code (or the whole redirect URL)
//  4. Call google_save_auth_code with it to save the token
//
// The next calendar tool call picks the token up without a restart.
package google_tools
