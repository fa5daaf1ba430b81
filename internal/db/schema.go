package db

var Schema string = `
CREATE TABLE IF NOT EXISTS fragments
(
    id   INTEGER PRIMARY KEY,

    label TEXT DEFAULT 'default',

    document TEXT,
    position INTEGER DEFAULT 0,
    content TEXT,

    embedding_model TEXT,
    embedding_vector BLOB,

    created_at INTEGER DEFAULT (strftime('%s', 'now')),
    updated_at INTEGER DEFAULT (strftime('%s', 'now')),

    CONSTRAINT unique_label_document_position UNIQUE (label, document, position)

);`
