package mcpserver

// SnapshotFormatContract describes the playground snapshot payload so LLM
// consumers can interpret what read_snapshot returns.
const SnapshotFormatContract = `# Pinboard Snapshot Format Contract

A snapshot is one saved state of a dashboard annotation playground. Snapshots
are versioned per (userId, viewId): every save of the same view by the same
user gets the next version number, starting at 1.

## Envelope

` + "```" + `json
{
  "id": "3f2c…",              // opaque snapshot id
  "sessionId": "session-1",   // optional
  "userId": "alice",          // REQUIRED
  "viewId": "sales-overview", // REQUIRED – the dashboard view annotated
  "version": 3,
  "timestamp": "2025-06-01T09:00:00Z",
  "checksum": "sha256 hex of payload",
  "payload": { … }            // the document below
}
` + "```" + `

## Payload document

` + "```" + `json
{
  "formatVersion": 1,
  "notes": [ { "id", "row", "col", "x", "y", "width", "height",
               "content", "isDark", "createdAt",
               "linkedElementId", "isLinked" } ],
  "droppedElements": [ { "id", "elementId", "elementName", "elementType",
                         "row", "col", "x", "y", "width", "height", "vegaSpec" } ],
  "aiAssistant": { "id", "row", "col", "x", "y", "width", "height",
                   "connectedElements": [ { "id", "type" } ],
                   "chatHistory", "showContext" },
  "connections": [ { "id", "sourceId", "sourceType", "sourcePosition",
                     "targetId", "targetType", "targetPosition", "createdAt" } ],
  "viewport": { "scale", "translateX", "translateY" },
  "dashboard": { "measuredHeight", "canvasWidth", "canvasHeight" }
}
` + "```" + `

## Rules

1. **Grid.** Positions are grid cells of 5 px. ` + "`" + `row` + "`" + `/` + "`" + `col` + "`" + ` are the top-left
   cell; ` + "`" + `x` + "`" + `/` + "`" + `y` + "`" + ` are the same corner in canvas pixels. Sizes are in cells.
2. **Dashboard.** A centred rectangle of the canvas is reserved for the
   dashboard; nothing may be placed on it.
3. **Entity types** are ` + "`" + `note` + "`" + `, ` + "`" + `element` + "`" + ` and ` + "`" + `ai-assistant` + "`" + `. There is
   at most one assistant.
4. **Edges** are ` + "`" + `top` + "`" + `, ` + "`" + `right` + "`" + `, ` + "`" + `bottom` + "`" + `, ` + "`" + `left` + "`" + `.
5. **Connections** join two different entities. At most one connection exists
   per unordered pair, and two elements are never connected directly.
6. **Implicit links.** A note whose ` + "`" + `linkedElementId` + "`" + ` is set is attached to that
   element without an entry in ` + "`" + `connections` + "`" + `. ` + "`" + `isLinked` + "`" + ` is true whenever the
   note has an implicit link or any connection.
7. **Note text** may start with YAML frontmatter (` + "`" + `title` + "`" + `, ` + "`" + `tags` + "`" + `); ` + "`" + `#tags` + "`" + `
   and ` + "`" + `[[element]]` + "`" + ` mentions in the body are recognised. The title is the
   frontmatter title, else the first heading or line.
8. **Tolerance.** Readers skip records they cannot understand and load the
   rest.

## Tools

- ` + "`" + `list_snapshots` + "`" + ` – newest 50 snapshots with counts and note titles.
- ` + "`" + `read_snapshot` + "`" + ` – envelope plus decoded document.
- ` + "`" + `describe_connections` + "`" + ` – every connection and implicit link with readable
  endpoint labels and note text.
- ` + "`" + `render_snapshot` + "`" + ` – writes a PNG of the snapshot into the exports directory.
`
