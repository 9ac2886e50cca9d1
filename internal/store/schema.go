package store

// schemaDDL creates the three tables of the persistent model plus the
// indices required to meet the complexities of the simplex-tree
// operations: sibling lookup (B-tree insert/search), coface candidate
// scan, and child enumeration for subtree collection / cascade delete.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS user_knowledge_vertex (
	vertex_id  INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id    TEXT NOT NULL,
	content    TEXT NOT NULL,
	embedding  TEXT NOT NULL,
	meta_data  TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_vertex_user_content
	ON user_knowledge_vertex(user_id, content);

CREATE TABLE IF NOT EXISTS user_knowledge_edge (
	edge_id     INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id     TEXT NOT NULL,
	tail_vertex INTEGER NOT NULL REFERENCES user_knowledge_vertex(vertex_id),
	head_vertex INTEGER NOT NULL REFERENCES user_knowledge_vertex(vertex_id),
	content     TEXT NOT NULL,
	meta_data   TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_edge_unique
	ON user_knowledge_edge(user_id, tail_vertex, head_vertex, content);

CREATE TABLE IF NOT EXISTS simplex_vertex (
	node_id   INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id   TEXT NOT NULL,
	parent_id INTEGER REFERENCES simplex_vertex(node_id),
	vertex_id INTEGER NOT NULL REFERENCES user_knowledge_vertex(vertex_id),
	depth     INTEGER NOT NULL,
	type      TEXT NOT NULL,
	meta_data TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_simplex_sibling
	ON simplex_vertex(user_id, parent_id, vertex_id);
CREATE INDEX IF NOT EXISTS idx_simplex_coface_scan
	ON simplex_vertex(user_id, vertex_id, depth);
CREATE INDEX IF NOT EXISTS idx_simplex_children
	ON simplex_vertex(parent_id);
`
