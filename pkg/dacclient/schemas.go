package dacclient

// JSON schemas for the responses returned by the external platform. Elements
// of array-shaped responses are validated independently via
// pkg/schema.ParseMany so a single malformed record never fails the whole
// call; the single platform user record is validated via ValidateOne.

const datasetSchema = `{
  "type": "object",
  "required": ["accession_id", "title"],
  "properties": {
    "accession_id": {"type": "string", "pattern": "^EGAD[0-9]{11}$"},
    "title": {"type": "string"},
    "description": {"type": "string"}
  }
}`

const platformUserSchema = `{
  "type": "object",
  "required": ["id", "username", "accession_id"],
  "properties": {
    "id": {"type": "integer"},
    "username": {"type": "string"},
    "email": {"type": ["string", "null"]},
    "accession_id": {"type": "string", "pattern": "^EGAW[0-9]{11}$"}
  }
}`

const permissionSchema = `{
  "type": "object",
  "required": ["permission_id", "username", "user_accession_id", "dataset_accession_id", "dac_accession_id"],
  "properties": {
    "permission_id": {"type": "integer"},
    "username": {"type": "string"},
    "user_accession_id": {"type": "string", "pattern": "^EGAW[0-9]{11}$"},
    "dataset_accession_id": {"type": "string", "pattern": "^EGAD[0-9]{11}$"},
    "dac_accession_id": {"type": "string", "pattern": "^EGAC[0-9]{11}$"}
  }
}`

const permissionRequestSchema = `{
  "type": "object",
  "required": ["request_id", "username", "dataset_accession_id"],
  "properties": {
    "request_id": {"type": "integer"},
    "username": {"type": "string"},
    "dataset_accession_id": {"type": "string", "pattern": "^EGAD[0-9]{11}$"}
  }
}`
