// Package docs serves the OpenAPI description of the Crowdfund API.
//
// @title           Crowdfund API
// @version         1.0.0
// @description     Backend for a crowdfunding platform: accounts, passwordless
// @description     and two-factor sign-in, project lifecycle and moderation.
// @description
// @description     ## Authentication
// @description
// @description     Send the access token from a login endpoint as `Authorization: Bearer <token>`.
// @description
// @description     ## Errors
// @description
// @description     All errors are RFC 7807 Problem Details (`application/problem+json`).
//
// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT
//
// @BasePath  /api/v1
//
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
//
// @tag.name Authentication
// @tag.description Registration, login, magic links and password reset
//
// @tag.name Users
// @tag.description Profile and two-factor settings of the current user
//
// @tag.name Projects
// @tag.description Public catalogue and owner project management
//
// @tag.name Admin
// @tag.description User and project moderation
package docs
