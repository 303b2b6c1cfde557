// Package services implements typed clients for the backend APIs fleetroute talks to.
//
// # Clients
//
//   - [VehicleService]: the vehicle inventory (list, get, create, update, delete)
//   - [RouteService]: the route optimizer
//   - [PlacesService]: the first-party places proxy served by `fleetroute serve`
//
// Every client sends its requests through a [Requester], normally a [gateway.Gateway], so
// credentials are attached and a single refresh-and-retry happens on 401.
//
// # Error Handling
//
// Gateway errors pass through wrapped:
//   - [shared.ErrAuthRequired]: the session could not be refreshed
//   - [shared.ErrUpstreamUnavailable]: transport failure or non-2xx response
//
// Not-found responses are reported as [shared.ErrVehicleNotFound] or [shared.ErrPlaceNotFound].
// The places proxy always answers 200 with a status field; non-OK statuses become a [*StatusError].
package services
