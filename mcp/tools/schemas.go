package tools

const kindEnum = `["modules","units","learningPaths","appliedSkills","certifications","cert","mergedCertifications","exams","courses","levels","roles","products","subjects"]`

var listCatalogSchema = `{
  "type": "object",
  "properties": {
    "type": {"type": "string", "enum": ` + kindEnum + `, "description": "Catalog collection to list"},
    "locale": {"type": "string", "description": "Locale such as en-us"},
    "max_results": {"type": "integer", "minimum": 1}
  },
  "required": ["type"]
}`

const searchCatalogSchema = `{
  "type": "object",
  "properties": {
    "type": {"type": "string", "description": "Comma-separated collections: modules,units,learningPaths,appliedSkills,certifications,mergedCertifications,exams,courses"},
    "locale": {"type": "string"},
    "level": {"type": "string", "description": "Comma-separated levels (beginner, intermediate, advanced)"},
    "role": {"type": "string", "description": "Comma-separated roles"},
    "product": {"type": "string", "description": "Comma-separated product ids"},
    "subject": {"type": "string", "description": "Comma-separated subjects"},
    "popularity": {"type": "string", "description": "Operator and value, e.g. 'gte 0.5'"},
    "last_modified": {"type": "string", "description": "Operator and ISO date, e.g. 'gte 2024-01-01'"},
    "q": {"type": "string", "description": "Free text matched against title, summary and subtitle"},
    "max_results": {"type": "integer", "minimum": 1}
  }
}`

const getDetailSchema = `{
  "type": "object",
  "properties": {
    "uid": {"type": "string", "minLength": 1, "description": "One or more comma-separated uids (case-sensitive)"},
    "locale": {"type": "string"},
    "type": {"type": "string", "description": "Optional comma-separated collections to narrow the reply"}
  },
  "required": ["uid"]
}`

const scrapeModuleUnitsSchema = `{
  "type": "object",
  "properties": {
    "module": {
      "type": "object",
      "properties": {
        "uid": {"type": "string"},
        "firstUnitUrl": {"type": "string"},
        "units": {"type": "array", "items": {"type": "string"}},
        "number_of_children": {"type": "integer"}
      }
    },
    "firstUnitUrl": {"type": "string"},
    "units": {"type": "array", "items": {"type": "string"}},
    "with_text_excerpt": {"type": "boolean", "default": false},
    "max_chars_excerpt": {"type": "integer", "minimum": 1, "default": 800},
    "max_units": {"type": "integer"}
  }
}`

const simpleTestSchema = `{
  "type": "object",
  "properties": {"msg": {"type": "string"}},
  "required": ["msg"]
}`

const findByProductSchema = `{
  "type": "object",
  "properties": {
    "productNames": {"type": "string", "minLength": 1, "description": "Comma-separated product ids, e.g. azure,dotnet"},
    "locale": {"type": "string"},
    "includeModules": {"type": "boolean", "default": true},
    "includePaths": {"type": "boolean", "default": true}
  },
  "required": ["productNames"]
}`

const findCertificationPathSchema = `{
  "type": "object",
  "properties": {
    "certificationName": {"type": "string", "minLength": 1},
    "locale": {"type": "string"}
  },
  "required": ["certificationName"]
}`

const getLearningPathDetailsSchema = `{
  "type": "object",
  "properties": {
    "pathUid": {"type": "string", "minLength": 1},
    "locale": {"type": "string"},
    "includeModuleDetails": {"type": "boolean", "default": false}
  },
  "required": ["pathUid"]
}`

const getAdvancedSearchSchema = `{
  "type": "object",
  "properties": {
    "query": {"type": "string", "minLength": 1},
    "types": {"type": "string", "default": "modules,learningPaths"},
    "locale": {"type": "string"},
    "level": {"type": "string"},
    "role": {"type": "string"},
    "product": {"type": "string"},
    "subject": {"type": "string"},
    "duration": {"type": "string", "pattern": "^\\s*\\d*\\s*-\\s*\\d*\\s*$", "description": "Module duration range in minutes, e.g. 10-30"},
    "sort": {"type": "string", "enum": ["popularity", "rating", "duration"]},
    "max_results": {"type": "integer", "minimum": 1, "default": 20}
  },
  "required": ["query"]
}`

const scrapeLearningPathSchema = `{
  "type": "object",
  "properties": {
    "pathUid": {"type": "string", "minLength": 1},
    "locale": {"type": "string"},
    "includeText": {"type": "boolean", "default": false},
    "maxModules": {"type": "integer", "minimum": 1, "default": 5}
  },
  "required": ["pathUid"]
}`
