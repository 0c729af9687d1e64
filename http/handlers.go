// server/http/handlers.go
package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ViniZap4/lumi-drive/domain"
	"github.com/ViniZap4/lumi-drive/repository"
	"github.com/ViniZap4/lumi-drive/ws"
)

type itemRequest struct {
	Title   string       `json:"title"`
	Content string       `json:"content"`
	Folder  string       `json:"folder"`
	Project *string      `json:"project"`
	Pinned  bool         `json:"pinned"`
	Created *domain.Date `json:"created"`
}

func (r itemRequest) save(id, folder string) repository.SaveRequest {
	if folder == "" {
		folder = r.Folder
	}
	if folder == "" {
		folder = domain.FolderInbox
	}
	var project *string
	if r.Project != nil {
		project = domain.StringPtr(*r.Project)
	}
	return repository.SaveRequest{
		ID:      id,
		Title:   r.Title,
		Content: r.Content,
		Folder:  folder,
		Project: project,
		Pinned:  r.Pinned,
		Created: r.Created,
	}
}

func parseBody(c *fiber.Ctx, v any) error {
	if err := c.BodyParser(v); err != nil {
		return &domain.ValidationError{Field: "body", Reason: err.Error()}
	}
	return nil
}

func requireFolder(c *fiber.Ctx) (string, error) {
	folder := c.Query("folder")
	if folder == "" {
		return "", &domain.ValidationError{Field: "folder", Reason: "query parameter is required"}
	}
	return folder, nil
}

func (s *Server) handleCounts(c *fiber.Ctx) error {
	counts, err := s.repo.Counts(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "counts": counts})
}

func (s *Server) handleList(c *fiber.Ctx) error {
	items, err := s.repo.Filter(c.UserContext(), c.Params("folder"), c.Query("filter"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "items": items, "count": len(items)})
}

func (s *Server) handleItem(c *fiber.Ctx) error {
	item, err := s.repo.Item(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "item": item})
}

func (s *Server) handleCreate(c *fiber.Ctx) error {
	var req itemRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	save := req.save("", "")
	res, err := s.repo.Save(c.UserContext(), save)
	if err != nil {
		return err
	}
	s.hub.Broadcast(ws.ItemCreated, res.ID, save.Folder)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "result": res})
}

func (s *Server) handleUpdate(c *fiber.Ctx) error {
	var req itemRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	save := req.save(c.Params("id"), c.Query("folder"))
	res, err := s.repo.Save(c.UserContext(), save)
	if err != nil {
		return err
	}
	s.hub.Broadcast(ws.ItemUpdated, res.ID, save.Folder)
	return c.JSON(fiber.Map{"success": true, "result": res})
}

func (s *Server) handleMove(c *fiber.Ctx) error {
	var req struct {
		From string `json:"from"`
		To   string `json:"to"`
	}
	if err := parseBody(c, &req); err != nil {
		return err
	}
	id := c.Params("id")
	if err := s.repo.Move(c.UserContext(), id, req.From, req.To); err != nil {
		return err
	}
	s.hub.Broadcast(ws.ItemMoved, id, req.To)
	return c.JSON(fiber.Map{"success": true})
}

func (s *Server) handlePin(c *fiber.Ctx) error {
	folder, err := requireFolder(c)
	if err != nil {
		return err
	}
	id := c.Params("id")
	pinned, err := s.repo.TogglePin(c.UserContext(), id, folder)
	if err != nil {
		return err
	}
	s.hub.Broadcast(ws.ItemUpdated, id, folder)
	return c.JSON(fiber.Map{"success": true, "pinned": pinned})
}

func (s *Server) handleProject(c *fiber.Ctx) error {
	var req struct {
		Folder  string  `json:"folder"`
		Project *string `json:"project"`
	}
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.Folder == "" {
		req.Folder = c.Query("folder")
	}
	id := c.Params("id")
	project, err := s.repo.UpdateProject(c.UserContext(), id, req.Folder, req.Project)
	if err != nil {
		return err
	}
	s.hub.Broadcast(ws.ItemUpdated, id, req.Folder)
	return c.JSON(fiber.Map{"success": true, "project": project})
}

func (s *Server) handleDelete(c *fiber.Ctx) error {
	folder, err := requireFolder(c)
	if err != nil {
		return err
	}
	id := c.Params("id")
	if err := s.repo.Delete(c.UserContext(), id, folder); err != nil {
		return err
	}
	s.hub.Broadcast(ws.ItemDeleted, id, folder)
	return c.JSON(fiber.Map{"success": true, "permanent": folder == domain.FolderTrash})
}

func (s *Server) handleCompanies(c *fiber.Ctx) error {
	return c.JSON(s.taxonomy.Companies())
}

func (s *Server) handleProjects(c *fiber.Ctx) error {
	return c.JSON(s.taxonomy.ProjectOptions(c.Query("company")))
}

func (s *Server) handleOrganizations(c *fiber.Ctx) error {
	return c.JSON(s.taxonomy.OrganizationOptions())
}

func (s *Server) handleConfig(c *fiber.Ctx) error {
	return c.JSON(s.taxonomy.Config())
}

func (s *Server) handleExport(c *fiber.Ctx) error {
	var req struct {
		Folder string `json:"folder"`
		Filter string `json:"filter"`
		Name   string `json:"name"`
	}
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.Folder == "" {
		return &domain.ValidationError{Field: "folder", Reason: "must not be empty"}
	}
	if req.Name == "" {
		req.Name = req.Folder
	}

	items, err := s.repo.Filter(c.UserContext(), req.Folder, req.Filter)
	if err != nil {
		return err
	}
	filename, err := s.repo.Export(c.UserContext(), items, req.Name)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "filename": filename, "count": len(items)})
}

func (s *Server) handleRefresh(c *fiber.Ctx) error {
	s.repo.ClearCache()
	s.hub.Broadcast(ws.CacheCleared, "", "")
	return c.JSON(fiber.Map{"success": true})
}

func (s *Server) handleReminderSync(c *fiber.Ctx) error {
	if s.syncer == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "reminders are not configured")
	}
	res, err := s.syncer.Sync(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "result": res})
}
