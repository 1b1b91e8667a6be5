package config

// DocumentSchema validates the JSON printed by the configuration provider.
// Two document shapes are in use: the nested "app" document and the flat one
// that carries a bucket prefix instead of a full bucket name.
const DocumentSchema = `{
    "$schema": "http://json-schema.org/draft-07/schema#",
    "definitions": {
        "nonEmpty": {"type": "string", "minLength": 1},
        "aws": {
            "type": "object",
            "properties": {
                "s3Bucket": {"$ref": "#/definitions/nonEmpty"},
                "bucketPrefix": {"$ref": "#/definitions/nonEmpty"},
                "accessKey": {"$ref": "#/definitions/nonEmpty"},
                "secretKey": {"$ref": "#/definitions/nonEmpty"}
            },
            "required": ["accessKey", "secretKey"],
            "anyOf": [
                {"required": ["s3Bucket"]},
                {"required": ["bucketPrefix"]}
            ]
        },
        "app": {
            "type": "object",
            "properties": {
                "namespace": {"$ref": "#/definitions/nonEmpty"},
                "aws": {"$ref": "#/definitions/aws"}
            },
            "required": ["namespace", "aws"]
        }
    },
    "type": "object",
    "anyOf": [
        {
            "properties": {"app": {"$ref": "#/definitions/app"}},
            "required": ["app"]
        },
        {"$ref": "#/definitions/app"}
    ]
}`

// SettingsSchema validates the tool settings after defaults, file and env are merged
// and decoded. Durations are checked in their decoded form (nanoseconds).
const SettingsSchema = `{
    "$schema": "http://json-schema.org/draft-07/schema#",
    "type": "object",
    "properties": {
        "log_level": {
            "type": "string",
            "enum": ["debug", "info", "warn", "error"]
        },
        "log_format": {
            "type": "string",
            "enum": ["json", "console"]
        },
        "provider": {
            "type": "object",
            "properties": {
                "command": {
                    "type": "array",
                    "items": {"type": "string"},
                    "minItems": 1
                },
                "timeout": {"type": ["string", "integer"]}
            }
        },
        "dump": {
            "type": "object",
            "properties": {
                "engine": {
                    "type": "string",
                    "enum": ["mysql", "postgres"]
                },
                "compressor": {
                    "type": "string",
                    "enum": ["gzip", "builtin"]
                },
                "compression_level": {
                    "type": "integer",
                    "minimum": 1,
                    "maximum": 9
                },
                "timeout": {"type": ["string", "integer"]},
                "compress_timeout": {"type": ["string", "integer"]}
            }
        },
        "artifact": {
            "type": "object",
            "properties": {
                "dir": {"type": "string", "minLength": 1},
                "file_prefix": {"type": "string"},
                "min_bytes": {"type": "integer", "minimum": 1024}
            }
        },
        "routing": {
            "type": "object",
            "properties": {
                "preset": {
                    "type": "string",
                    "enum": ["safeguard", "plain", "dedicated"]
                },
                "routes": {
                    "type": "array",
                    "items": {
                        "type": "object",
                        "properties": {
                            "stage": {"type": "string", "minLength": 1},
                            "bucket_suffix": {"type": "string"},
                            "key_suffix": {"type": "string"},
                            "inverted": {"type": "boolean"}
                        },
                        "required": ["stage"]
                    }
                }
            }
        },
        "storage": {
            "type": "object",
            "properties": {
                "type": {
                    "type": "string",
                    "enum": ["s3", "minio", "backblaze", "ssh", "local"]
                },
                "options": {"type": "object"},
                "timeout": {"type": ["string", "integer"]},
                "verify": {"type": "boolean"}
            }
        }
    }
}`
