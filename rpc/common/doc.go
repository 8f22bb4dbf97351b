// Package common provides the data structures shared by the daemon, its client and
// the command line tools.
//
// Key Components:
//
//   - Message: body of every request and response packet. Which fields are used
//     depends on the Ordinal of the request.
//
//   - Ordinal: identifies the operation of a request, travels in the packet header.
//
//   - ResultCode: outcome of a request, travels in the header of the response.
//     ResultError is the client side error for any code other than ResultSuccess.
//
//   - ServerConfig / ClientConfig: plain configuration structs filled by the cmd
//     package from flags, environment and .env files.
//
//   - Logger: custom logger factory for github.com/lni/dragonboat/v4/logger, used by
//     every package through logger.GetLogger.
package common
