/*
Package nodepath provides a structured representation of child keys and the
paths they form inside a graph.

A key is either a name (`user`) or an index (`[3]`). A path is rendered as a
dot-separated sequence of names where index keys attach to the preceding
segment, e.g. `users[0].friends[2].name`. A path that starts with an index
renders as `[0].name`.

Paths travel on the wire as JSON arrays of strings and numbers, which is the
form used for error path metadata.
*/
package nodepath
