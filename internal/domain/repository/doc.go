// Package repository define las interfaces de acceso a datos del core.
//
// Son contratos de negocio, independientes del almacenamiento subyacente.
// Las implementaciones concretas viven en internal/store/ (memory, pg).
//
// Convenciones:
//   - Context siempre es el primer parámetro.
//   - Lookups que no encuentran retornan ErrNotFound (errors.Is-compatible).
//   - Los errores de dominio se traducen en la capa de servicio, no acá.
package repository
