// Package common contains shared constants and sentinel errors used across
// varejo components.
package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on outbound requests.
const AccessTokenHeaderName = "access_token"

// UserAgentHeaderName is the metadata key the CLI fills with its own
// identification; the server copies it into audit records.
const UserAgentHeaderName = "user-agent"

// ActorSettingName is the transaction-local Postgres setting read by the
// audit triggers on UPDATE and DELETE.
const ActorSettingName = "varejo.actor_id"
