// Package sqlnp lets you write SQL with :named placeholders and bind values by name against database/sql drivers that only understand positional parameters. Parse rewrites the statement once and records, for every name, the positional slots it occupies; NamedStmt prepares the rewritten text and fans each named bind out to those slots. The scan is purely lexical: a colon inside a string literal or comment is treated like any other.

package sqlnp
